package config

import "time"

type AppConfig struct {
	DBDriver       string         `yaml:"db_driver" env:"ARCHIDOC_DB_DRIVER" env-default:"sqlite"`
	DBURL          string         `yaml:"db_url" env:"ARCHIDOC_DB_URL" env-default:""`
	DBPath         string         `yaml:"db_path" env:"ARCHIDOC_DB_PATH" env-default:"data/archidoc.db"`
	ListenAddr     string         `yaml:"listen_addr" env:"ARCHIDOC_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	Pepper         string         `yaml:"pepper" env:"ARCHIDOC_PEPPER"`
	SessionTTL     time.Duration  `yaml:"session_ttl" env:"ARCHIDOC_SESSION_TTL" env-default:"3h"`
	Session        SessionConfig  `yaml:"session"`
	Storage        StorageConfig  `yaml:"storage"`
	Upload         UploadConfig   `yaml:"upload"`
	Security       SecurityConfig `yaml:"security"`
	Janitor        JanitorConfig  `yaml:"janitor"`
	AuditRetention int            `yaml:"audit_retention_days" env:"ARCHIDOC_AUDIT_RETENTION_DAYS" env-default:"365"`
}

type SessionConfig struct {
	// IdleWarn is how long a session may stay idle before it enters the
	// warned state; IdleLogout is the total idle budget before forced
	// sign-out. The warned window is always IdleLogout - IdleWarn.
	IdleWarn   time.Duration `yaml:"idle_warn" env:"ARCHIDOC_SESSION_IDLE_WARN" env-default:"9m"`
	IdleLogout time.Duration `yaml:"idle_logout" env:"ARCHIDOC_SESSION_IDLE_LOGOUT" env-default:"10m"`
}

type StorageConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ARCHIDOC_S3_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `yaml:"access_key" env:"ARCHIDOC_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"ARCHIDOC_S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"ARCHIDOC_S3_BUCKET" env-default:"documents"`
	Region    string `yaml:"region" env:"ARCHIDOC_S3_REGION" env-default:""`
	UseSSL    bool   `yaml:"use_ssl" env:"ARCHIDOC_S3_USE_SSL" env-default:"false"`
}

type UploadConfig struct {
	MaxBatchFiles int      `yaml:"max_batch_files" env:"ARCHIDOC_UPLOAD_MAX_BATCH" env-default:"5"`
	MaxFileBytes  int64    `yaml:"max_file_bytes" env:"ARCHIDOC_UPLOAD_MAX_FILE_BYTES" env-default:"20971520"`
	AllowedExts   []string `yaml:"allowed_exts" env:"ARCHIDOC_UPLOAD_ALLOWED_EXTS" env-separator:"," env-default:"pdf,doc,docx,xls,xlsx,ppt,pptx,jpg,jpeg,png"`
}

type SecurityConfig struct {
	TrustedProxies []string `yaml:"trusted_proxies" env:"ARCHIDOC_SECURITY_TRUSTED_PROXIES" env-separator:","`
	LoginBurst     int      `yaml:"login_burst" env:"ARCHIDOC_SECURITY_LOGIN_BURST" env-default:"5"`
}

type JanitorConfig struct {
	Enabled bool `yaml:"enabled" env:"ARCHIDOC_JANITOR_ENABLED" env-default:"true"`
	// Spec is a cron expression; the default runs every night at 02:30.
	Spec string `yaml:"spec" env:"ARCHIDOC_JANITOR_SPEC" env-default:"30 2 * * *"`
}

const maxUserSessionTTL = 3 * time.Hour

func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	ttl := maxUserSessionTTL
	if c != nil && c.SessionTTL > 0 {
		ttl = c.SessionTTL
	}
	if ttl > maxUserSessionTTL {
		return maxUserSessionTTL
	}
	return ttl
}

func (c *AppConfig) IdleWarn() time.Duration {
	if c == nil || c.Session.IdleWarn <= 0 {
		return 9 * time.Minute
	}
	return c.Session.IdleWarn
}

func (c *AppConfig) IdleLogout() time.Duration {
	warn := c.IdleWarn()
	if c == nil || c.Session.IdleLogout <= warn {
		return warn + time.Minute
	}
	return c.Session.IdleLogout
}
