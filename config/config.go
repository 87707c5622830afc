package config

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"13222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type MailcoreDatabaseConfig struct {
	Host            string `env:"MAILCORE_POSTGRES_HOST,required"`
	Port            string `env:"MAILCORE_POSTGRES_PORT,required"`
	User            string `env:"MAILCORE_POSTGRES_USER,required"`
	DBName          string `env:"MAILCORE_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILCORE_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILCORE_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILCORE_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILCORE_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILCORE_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILCORE_POSTGRES_SSL_MODE"`
}

type ProviderConfig struct {
	Url                   string `env:"MAIL_PROVIDER_API_URL,required"`
	RequestTimeoutSeconds int    `env:"MAIL_PROVIDER_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// Bootstrap window and body shape requested from the provider.
	SyncDaysWithin int    `env:"MAIL_PROVIDER_SYNC_DAYS_WITHIN" envDefault:"30"`
	SyncBodyType   string `env:"MAIL_PROVIDER_SYNC_BODY_TYPE" envDefault:"html"`

	// Bootstrap polling: fixed interval, bounded total wait.
	BootstrapPollIntervalSeconds int `env:"MAIL_PROVIDER_BOOTSTRAP_POLL_INTERVAL_SECONDS" envDefault:"1"`
	BootstrapTimeoutSeconds      int `env:"MAIL_PROVIDER_BOOTSTRAP_TIMEOUT_SECONDS" envDefault:"300"`
}

type EmbeddingConfig struct {
	Url    string `env:"EMBEDDING_API_URL,required"`
	ApiKey string `env:"EMBEDDING_API_KEY,required"`
	Model  string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-004"`
}

type R2StorageConfig struct {
	AccountID             string `env:"CLOUDFLARE_R2_ACCOUNT_ID,required"`
	AccessKeyID           string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID,required"`
	AccessKeySecret       string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET,required"`
	EmailAttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"attachments"`
}
