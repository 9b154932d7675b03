package database

import (
	"database/sql"
	"fmt"
	"log"
)

// schema matches the original app_portfolio layout.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS app_portfolio (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		app_name TEXT NOT NULL,
		platform TEXT NOT NULL CHECK(platform IN ('iOS', 'Android')),
		date DATE NOT NULL,
		country TEXT NOT NULL,
		installs INTEGER DEFAULT 0,
		in_app_revenue DECIMAL(10, 2) DEFAULT 0.0,
		ads_revenue DECIMAL(10, 2) DEFAULT 0.0,
		ua_cost DECIMAL(10, 2) DEFAULT 0.0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_app_name ON app_portfolio(app_name)`,
	`CREATE INDEX IF NOT EXISTS idx_platform ON app_portfolio(platform)`,
	`CREATE INDEX IF NOT EXISTS idx_date ON app_portfolio(date)`,
	`CREATE INDEX IF NOT EXISTS idx_country ON app_portfolio(country)`,
}

// appNames holds 49 distinct apps. The first 21 ship on iOS, the rest on
// Android, and one extra row duplicates the first app so the seed corpus is
// 50 rows / 49 distinct apps.
var appNames = []string{
	"Puzzle Quest", "Word Tower", "Fit Coach", "Sleep Sound", "Photo Studio",
	"Recipe Box", "Budget Buddy", "Star Runner", "Chess Master", "Daily Habit",
	"Mind Map", "Lingua Learn", "Pixel Painter", "Task Flow", "Storm Radar",
	"Night Sky", "Trail Finder", "Meal Planner", "Card Clash", "Focus Timer",
	"Baby Tracker", "Tower Defense X", "Idle Empire", "Drift Racer", "Bubble Pop",
	"Farm Story", "Block Blast", "Quiz Arena", "Pet Salon", "Merge Garden",
	"Solitaire Gold", "Dash Dash", "City Builder", "Space Miner", "Jelly Jump",
	"Hidden Objects", "Color Sort", "Train Tycoon", "Fish Frenzy", "Ninja Path",
	"Candy Match", "Slot Party", "Parking Pro", "Hexa Link", "Snake Rush",
	"Gem Hunter", "Bridge Run", "Tile Twist", "Zen Lines",
}

var seedCountries = []string{
	"United States", "United Kingdom", "Germany", "Netherlands",
	"France", "Japan", "Brazil", "India",
}

// iosAppCount is how many of the seed apps ship on iOS.
const iosAppCount = 21

// Seed creates the schema and inserts the deterministic sample corpus when
// the table is empty.
func (d *DB) Seed() error {
	for _, stmt := range schema {
		if _, err := d.rw.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	var count int
	if err := d.rw.QueryRow(`SELECT COUNT(*) FROM app_portfolio`).Scan(&count); err != nil {
		return fmt.Errorf("check seed state: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := d.rw.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := `INSERT INTO app_portfolio
		(app_name, platform, date, country, installs, in_app_revenue, ads_revenue, ua_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	rows := 0
	for i, name := range appNames {
		platform := "Android"
		if i < iosAppCount {
			platform = "iOS"
		}
		if err := insertSeedRow(tx, insert, name, platform, i); err != nil {
			return err
		}
		rows++
	}
	// Duplicate app on a second row: 50 rows, 49 distinct names.
	if err := insertSeedRow(tx, insert, appNames[0], "iOS", len(appNames)); err != nil {
		return err
	}
	rows++

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[database] seeded app_portfolio with %d rows", rows)
	return nil
}

func insertSeedRow(tx *sql.Tx, insert, name, platform string, i int) error {
	date := fmt.Sprintf("2024-%02d-%02d", i%12+1, i%28+1)
	country := seedCountries[i%len(seedCountries)]
	installs := 1000 + i*137
	inApp := float64(500+i*91) + 0.25
	ads := float64(200+i*53) + 0.10
	ua := float64(100+i*37) + 0.50

	_, err := tx.Exec(insert, name, platform, date, country, installs, inApp, ads, ua)
	if err != nil {
		return fmt.Errorf("seed row %d: %w", i, err)
	}
	return nil
}
