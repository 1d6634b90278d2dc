// Package main hosts the tenderwatch entrypoint.
//
// Each invocation performs one sweep of the e-Zamówienia search page and exits; scheduling belongs to cron or a
// systemd timer.
//
// Architecture overview:
//   - Configuration: internal/config reads .env files (godotenv), an optional YAML file and TENDERWATCH_* variables
//     through Viper. GMAIL_USER, APP_PASSWORD and MAIL_TO are honoured for the mail account.
//   - Logging: internal/logging tees a console core with the append-only run log next to the executable. The run log
//     is also the input of the health check, so every warning or error logged today marks the status as failed.
//   - Search: internal/portal drives headless Chrome via chromedp. One session per run; each phrase is typed into the
//     search box and the results table is polled until it settles.
//   - Dedup: internal/tender.Collector drops identifiers held by the identifier store (internal/idstore, file or
//     Postgres) and identifiers already reported earlier in the same run.
//   - Outputs: internal/results encodes the batch; the artifact is written locally, optionally archived to GCS, then
//     sent by email (go-mail) and optionally published to Pub/Sub.
//   - Health: internal/health derives the status record from today's log lines. Prometheus gauges can be written to a
//     node_exporter textfile.
//
// Exit status is 1 when configuration or logging cannot be initialised, or when the identifier store or the search
// page cannot be loaded. Every other failure is logged and surfaces through the status file.
//
// Quick checklist:
//   - Export GMAIL_USER, APP_PASSWORD and MAIL_TO (or put them in .env).
//   - Build and run: go build -o tenderwatch ./cmd/tenderwatch && ./tenderwatch -config config.yaml. State files sit
//     next to the executable, so go run needs TENDERWATCH_PATHS_BASE_DIR (paths.base_dir) or they land in a temp dir.
//   - Schedule: 0 7 * * * /opt/tenderwatch/tenderwatch
package main
