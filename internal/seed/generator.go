// Package seed produces the demo company dataset: deterministic synthetic
// records encoded to parquet and uploaded to the object store, from where the
// warehouse hydrates its companies table.
package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Company mirrors the warehouse companies table.
type Company struct {
	CompanyID     string    `json:"company_id" parquet:"company_id"`
	Name          string    `json:"name" parquet:"name"`
	Industry      string    `json:"industry" parquet:"industry"`
	Region        string    `json:"region" parquet:"region"`
	Country       string    `json:"country" parquet:"country"`
	EmployeeCount int32     `json:"employee_count" parquet:"employee_count"`
	Revenue       float64   `json:"revenue" parquet:"revenue"`
	FoundedYear   int32     `json:"founded_year" parquet:"founded_year"`
	Status        string    `json:"status" parquet:"status"`
	CreatedAt     time.Time `json:"created_at" parquet:"created_at,timestamp"`
}

var industries = []string{
	"software", "fintech", "healthcare", "manufacturing", "retail",
	"logistics", "energy", "media", "biotech", "education",
}

var regionCountries = map[string][]string{
	"north_america": {"US", "CA", "MX"},
	"europe":        {"DE", "GB", "FR", "NL", "SE"},
	"asia_pacific":  {"JP", "IN", "SG", "AU"},
	"south_america": {"BR", "AR", "CL"},
}

var regions = []string{"north_america", "europe", "asia_pacific", "south_america"}

var nameParts = struct {
	prefixes []string
	suffixes []string
}{
	prefixes: []string{"Acme", "Nimbus", "Vertex", "Harbor", "Quantum", "Cedar", "Atlas", "Lumen", "Forge", "Summit"},
	suffixes: []string{"Systems", "Labs", "Holdings", "Analytics", "Industries", "Partners", "Works", "Group", "Dynamics", "Logistics"},
}

type Generator struct {
	rnd      *rand.Rand
	sequence int64
	now      func() time.Time
}

// NewGenerator returns a generator whose output is fully determined by seed,
// so repeated seeding runs produce identical datasets.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) Next() Company {
	g.sequence++
	region := pickOne(g.rnd, regions)
	country := pickOne(g.rnd, regionCountries[region])
	createdAt := g.pickCreatedAt()

	return Company{
		CompanyID:     fmt.Sprintf("comp-%06d", g.sequence),
		Name:          fmt.Sprintf("%s %s", pickOne(g.rnd, nameParts.prefixes), pickOne(g.rnd, nameParts.suffixes)),
		Industry:      pickOne(g.rnd, industries),
		Region:        region,
		Country:       country,
		EmployeeCount: int32(5 + g.rnd.Intn(20000)),
		Revenue:       round2(50_000 + g.rnd.Float64()*500_000_000),
		FoundedYear:   int32(1970 + g.rnd.Intn(55)),
		Status:        g.pickStatus(),
		CreatedAt:     createdAt,
	}
}

func (g *Generator) Generate(count int) []Company {
	companies := make([]Company, 0, count)
	for i := 0; i < count; i++ {
		companies = append(companies, g.Next())
	}
	return companies
}

// pickCreatedAt spreads records over the trailing three years so timeframe
// filters always have something on both sides of the cutoff.
func (g *Generator) pickCreatedAt() time.Time {
	window := 3 * 365 * 24 * time.Hour
	offset := time.Duration(g.rnd.Int63n(int64(window)))
	return g.now().Add(-offset).Truncate(time.Second)
}

func (g *Generator) pickStatus() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 82:
		return "active"
	case p < 93:
		return "acquired"
	default:
		return "dissolved"
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
