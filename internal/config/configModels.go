package config

import "time"

type Config struct {
	Env            string       `yaml:"env" env-default:"local"`
	DBConfig       DBConfig     `yaml:"db" env-required:"true"`
	Engine         EngineConfig `yaml:"engine"`
	Report         ReportConfig `yaml:"report"`
	ConfigFilePath string       `yaml:"configFilePath" env:"CONFIG_FILEPATH" env-default:""`
	ConfigFileName string       `yaml:"configFileName" env:"CONFIG_FILENAME" env-default:""`
	configPath     string
}

type DBConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"postgres"`
	User     string `yaml:"user" env:"DB_USER" env-default:"user"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"password"`
	Schema   string `yaml:"schema" env:"DB_SCHEMA" env-default:"shift_metrics"`
}

type EngineConfig struct {
	RollingCacheSize int           `yaml:"rollingCacheSize" env-default:"1024"`
	RollingCacheTTL  time.Duration `yaml:"rollingCacheTTL" env-default:"5m"`
	DashboardWorkers int           `yaml:"dashboardWorkers" env-default:"4"`
}

// ReportConfig configures the reporting job: on whose behalf the dashboard
// is computed and over which window.
type ReportConfig struct {
	Role            string   `yaml:"role" env:"REPORT_ROLE" env-default:"ADMIN"`
	AssignedClients string   `yaml:"assignedClients" env:"REPORT_CLIENTS" env-default:""`
	WindowDays      int      `yaml:"windowDays" env-default:"7"`
	Granularity     string   `yaml:"granularity" env-default:"day"`
	GroupBy         []string `yaml:"groupBy" env-default:"client"`
}
