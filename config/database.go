package config

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"orderworker"`
	Password string `env:"PASSWORD" envDefault:"orderworker"`
	Name     string `env:"NAME"     envDefault:"orderworker"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production

	// PoolMin is the number of idle connections kept open.
	PoolMin int `env:"POOL_MIN" envDefault:"1"`
	// PoolMax is the maximum number of concurrently open connections.
	// Callers block waiting for a free connection once the pool is at capacity.
	PoolMax int `env:"POOL_MAX" envDefault:"20"`

	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// Sanitize applies guardrails to database configuration values.
func (c *DBConfig) Sanitize() {
	if c.PoolMin < 1 {
		c.PoolMin = 1
	}
	if c.PoolMax < 1 {
		c.PoolMax = 20
	}
	if c.PoolMax < c.PoolMin {
		c.PoolMax = c.PoolMin
	}
}
