package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Incremental mailbox sync, every five minutes
	CronScheduleIncrementalSync string `env:"CRON_SCHEDULE_INCREMENTAL_SYNC" envDefault:"0 */5 * * * *"`
}
