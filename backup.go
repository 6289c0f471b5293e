package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/robfig/cron/v3"

	"github.com/concierge-hq/concierge/metrics"
	"github.com/concierge-hq/concierge/storage"
)

const (
	appName       = "concierge"
	backupHour    = 3
	retentionDays = 30
)

// backupStorageConfig reads BACKUP_* settings and falls back to the
// photo bucket settings when no dedicated backup bucket is configured.
func backupStorageConfig() storage.Config {
	cfg := storage.ConfigFromEnv("BACKUP")
	if !cfg.Configured() {
		cfg = storage.ConfigFromEnv("S3")
	}
	return cfg
}

func backupLocation() *time.Location {
	name := os.Getenv("BACKUP_TIMEZONE")
	if name == "" {
		name = "Europe/Lisbon"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[Backup] Warning: Could not load timezone %q, using UTC: %v", name, err)
		return time.UTC
	}
	return loc
}

// backupSchedule runs the backup daily at backupHour
var backupSchedule = mustSchedule(fmt.Sprintf("0 %d * * *", backupHour))

func mustSchedule(expr string) cron.Schedule {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		panic(fmt.Sprintf("backup schedule %q: %v", expr, err))
	}
	return sched
}

// nextBackupTime returns the next scheduled run strictly after now, in loc
func nextBackupTime(now time.Time, loc *time.Location) time.Time {
	return backupSchedule.Next(now.In(loc))
}

func backupKey(name string) string {
	return fmt.Sprintf("%s/database/%s", appName, name)
}

// scheduleBackups runs a backup every day at backupHour until ctx ends
func scheduleBackups(ctx context.Context, app core.App) {
	cfg := backupStorageConfig()
	if !cfg.Configured() {
		log.Printf("[Backup] Storage not configured, scheduled backups disabled")
		return
	}

	loc := backupLocation()
	c := cron.New(cron.WithLocation(loc))
	c.Schedule(backupSchedule, cron.FuncJob(func() {
		err := runBackup(ctx, app, cfg)
		metrics.BackupRun(err)
		if err != nil {
			log.Printf("[Backup] ERROR: %v", err)
		}
		log.Printf("[Backup] Next backup scheduled for %s", nextBackupTime(time.Now(), loc).Format("2006-01-02 15:04 MST"))
	}))

	next := nextBackupTime(time.Now(), loc)
	log.Printf("[Backup] Next backup scheduled for %s (in %v)", next.Format("2006-01-02 15:04 MST"), time.Until(next).Round(time.Minute))

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

// runBackup creates a PocketBase backup, uploads it and prunes old copies
func runBackup(ctx context.Context, app core.App, cfg storage.Config) error {
	log.Printf("[Backup] Starting backup...")

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	name := fmt.Sprintf("%s-db-%s.zip", appName, time.Now().Format("2006-01-02"))
	if err := app.CreateBackup(ctx, name); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	path := filepath.Join(app.DataDir(), "backups", name)
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	err = client.Upload(ctx, backupKey(name), file)
	file.Close()
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	log.Printf("[Backup] Uploaded to s3://%s/%s", client.Bucket(), backupKey(name))

	if err := os.Remove(path); err != nil {
		log.Printf("[Backup] Warning: Failed to delete local backup: %v", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := client.DeleteOlderThan(ctx, backupKey(""), cutoff)
	if err != nil {
		log.Printf("[Backup] Warning: Failed to clean old backups: %v", err)
	} else if len(deleted) > 0 {
		log.Printf("[Backup] Cleaned up %d old backup(s)", len(deleted))
	}

	log.Printf("[Backup] Completed successfully: %s", name)
	return nil
}
