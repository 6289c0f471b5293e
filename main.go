package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/spf13/cobra"

	"github.com/concierge-hq/concierge/metrics"
	_ "github.com/concierge-hq/concierge/migrations"
	"github.com/concierge-hq/concierge/storage"
	"github.com/concierge-hq/concierge/utils"
)

func main() {
	// .env is optional and only used in local development
	_ = godotenv.Load()

	app := pocketbase.New()

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: false,
	})

	// Register encrypt-pii command for encrypting client PII stored before ENCRYPTION_KEY was set
	app.RootCmd.AddCommand(&cobra.Command{
		Use:   "encrypt-pii",
		Short: "Encrypt existing unencrypted PII fields in clients",
		Run: func(cmd *cobra.Command, args []string) {
			if err := app.Bootstrap(); err != nil {
				log.Fatalf("Failed to bootstrap: %v", err)
			}
			if err := runPIIEncryptionMigration(app); err != nil {
				log.Fatalf("Migration failed: %v", err)
			}
		},
	})

	app.RootCmd.AddCommand(newImportFirestoreCmd(app))
	app.RootCmd.AddCommand(newBookingsReportCmd(app))

	// Register backup-now command to run the database backup immediately
	app.RootCmd.AddCommand(&cobra.Command{
		Use:   "backup-now",
		Short: "Create a database backup and upload it to object storage",
		Run: func(cmd *cobra.Command, args []string) {
			if err := app.Bootstrap(); err != nil {
				log.Fatalf("Failed to bootstrap: %v", err)
			}
			cfg := backupStorageConfig()
			if !cfg.Configured() {
				log.Fatal("Backup storage not configured (BACKUP_BUCKET or S3_BUCKET)")
			}
			if err := runBackup(cmd.Context(), app, cfg); err != nil {
				log.Fatalf("Backup failed: %v", err)
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		configurePocketBaseSMTP(app)

		e.Router.BindFunc(securityHeadersMiddleware)
		e.Router.BindFunc(metrics.Middleware)

		registerRoutes(e, app, newPhotoResolver(ctx))

		serveFrontend(e)

		go scheduleBackups(ctx, app)

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		return e.Next()
	})

	// Recompute reservation totals and payment status on every save
	registerReservationHooks(app)

	registerAuditHooks(app)

	registerEncryptionHooks(app)

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

func newImportFirestoreCmd(app *pocketbase.PocketBase) *cobra.Command {
	var projectID, companyID, credentials string
	cmd := &cobra.Command{
		Use:   "import-firestore",
		Short: "Import a company's clients, inventory, reservations and offers from Firestore",
		Run: func(cmd *cobra.Command, args []string) {
			if err := app.Bootstrap(); err != nil {
				log.Fatalf("Failed to bootstrap: %v", err)
			}
			src, err := newFirestoreSource(cmd.Context(), projectID, credentials)
			if err != nil {
				log.Fatalf("Firestore: %v", err)
			}
			defer src.Close()

			fmt.Printf("Importing company %s from project %s...\n", companyID, projectID)
			stats, err := runFirestoreImport(cmd.Context(), app, src, companyID)
			if err != nil {
				log.Fatalf("Import failed: %v", err)
			}
			for _, coll := range importOrder {
				s := stats[coll]
				fmt.Printf("%-14s created %d, updated %d, failed %d\n", coll, s.Created, s.Updated, s.Failed)
			}
		},
	}
	cmd.Flags().StringVar(&projectID, "project", os.Getenv("FIRESTORE_PROJECT_ID"), "Google Cloud project id")
	cmd.Flags().StringVar(&companyID, "company", "", "company id to import into (matches legacy companyId)")
	cmd.Flags().StringVar(&credentials, "credentials", "", "service account JSON file")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newBookingsReportCmd(app *pocketbase.PocketBase) *cobra.Command {
	var companyID, bucket string
	cmd := &cobra.Command{
		Use:   "bookings-report",
		Short: "Print a company's bookings grouped by client",
		Run: func(cmd *cobra.Command, args []string) {
			if err := app.Bootstrap(); err != nil {
				log.Fatalf("Failed to bootstrap: %v", err)
			}
			if err := runBookingsReport(app, cmd.OutOrStdout(), companyID, bucket, time.Now()); err != nil {
				log.Fatalf("Report failed: %v", err)
			}
		},
	}
	cmd.Flags().StringVar(&companyID, "company", "", "company id")
	cmd.Flags().StringVar(&bucket, "bucket", "", "only upcoming, active, past or unscheduled stays")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

// newPhotoResolver returns the S3 client when configured, otherwise photos
// are served by their stored keys.
func newPhotoResolver(ctx context.Context) photoResolver {
	cfg := storage.ConfigFromEnv("S3")
	if !cfg.Configured() {
		log.Printf("[Storage] S3 not configured, photo URLs are not signed")
		return rawPhotos{}
	}
	client, err := storage.New(ctx, cfg)
	if err != nil {
		log.Printf("[Storage] Warning: %v", err)
		return rawPhotos{}
	}
	return client
}

// securityHeadersMiddleware adds security headers to all responses
func securityHeadersMiddleware(e *core.RequestEvent) error {
	h := e.Response.Header()

	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")

	// HSTS - enforce HTTPS for 1 year, include subdomains
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

	// Photos come from the object store, hence https: for images
	h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; connect-src 'self' https:; frame-ancestors 'none'")

	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

	return e.Next()
}

// registerRoutes sets up all custom API endpoints
func registerRoutes(e *core.ServeEvent, app core.App, photos photoResolver) {
	// Prometheus scrape endpoint, bearer token protected
	e.Router.GET("/api/metrics", func(re *core.RequestEvent) error {
		metrics.Handler().ServeHTTP(re.Response, re.Request)
		return nil
	}).BindFunc(metrics.RequireToken)

	// Public shared offer view, rate limited against token guessing
	e.Router.GET("/api/public/offers/{token}", func(re *core.RequestEvent) error {
		return handlePublicOffer(re, app)
	}).BindFunc(utils.RateLimitPublic)

	// Dashboard and grouped bookings
	e.Router.GET("/api/dashboard", func(re *core.RequestEvent) error {
		return handleDashboard(re, app)
	}).BindFunc(utils.RequireViewer)

	e.Router.GET("/api/bookings", func(re *core.RequestEvent) error {
		return handleBookings(re, app)
	}).BindFunc(utils.RequireViewer)

	// Clients
	e.Router.GET("/api/clients", func(re *core.RequestEvent) error {
		return handleClientsList(re, app)
	}).BindFunc(utils.RequireViewer)

	e.Router.GET("/api/clients/{id}", func(re *core.RequestEvent) error {
		return handleClientGet(re, app)
	}).BindFunc(utils.RequireViewer)

	e.Router.POST("/api/clients", func(re *core.RequestEvent) error {
		return handleClientCreate(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

	e.Router.PATCH("/api/clients/{id}", func(re *core.RequestEvent) error {
		return handleClientUpdate(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

	e.Router.DELETE("/api/clients/{id}", func(re *core.RequestEvent) error {
		return handleClientDelete(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireAdmin)

	e.Router.GET("/api/clients/{id}/reservations", func(re *core.RequestEvent) error {
		return handleClientReservations(re, app)
	}).BindFunc(utils.RequireViewer)

	// Villas and boats
	for _, inv := range []inventory{villaInventory, boatInventory} {
		base := "/api/" + inv.Collection

		e.Router.GET(base, func(re *core.RequestEvent) error {
			return handleInventoryList(re, app, inv, photos)
		}).BindFunc(utils.RequireViewer)

		e.Router.GET(base+"/{id}", func(re *core.RequestEvent) error {
			return handleInventoryGet(re, app, inv, photos)
		}).BindFunc(utils.RequireViewer)

		e.Router.POST(base, func(re *core.RequestEvent) error {
			return handleInventoryCreate(re, app, inv, photos)
		}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

		e.Router.PATCH(base+"/{id}", func(re *core.RequestEvent) error {
			return handleInventoryUpdate(re, app, inv, photos)
		}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

		e.Router.DELETE(base+"/{id}", func(re *core.RequestEvent) error {
			return handleInventoryDelete(re, app, inv)
		}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireAdmin)
	}

	// Reservations
	e.Router.GET("/api/reservations", func(re *core.RequestEvent) error {
		return handleReservationsList(re, app)
	}).BindFunc(utils.RequireViewer)

	e.Router.GET("/api/reservations/{id}", func(re *core.RequestEvent) error {
		return handleReservationGet(re, app)
	}).BindFunc(utils.RequireViewer)

	e.Router.POST("/api/reservations", func(re *core.RequestEvent) error {
		return handleReservationCreate(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

	e.Router.PATCH("/api/reservations/{id}", func(re *core.RequestEvent) error {
		return handleReservationUpdate(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

	e.Router.DELETE("/api/reservations/{id}", func(re *core.RequestEvent) error {
		return handleReservationDelete(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireAdmin)

	// Payments
	e.Router.POST("/api/reservations/{id}/payments", func(re *core.RequestEvent) error {
		return handlePaymentAdd(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

	e.Router.DELETE("/api/reservations/{id}/payments/{paymentId}", func(re *core.RequestEvent) error {
		return handlePaymentDelete(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireAdmin)

	// Offers
	e.Router.GET("/api/offers", func(re *core.RequestEvent) error {
		return handleOffersList(re, app)
	}).BindFunc(utils.RequireViewer)

	e.Router.GET("/api/offers/{id}", func(re *core.RequestEvent) error {
		return handleOfferGet(re, app)
	}).BindFunc(utils.RequireViewer)

	e.Router.POST("/api/offers", func(re *core.RequestEvent) error {
		return handleOfferCreate(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

	e.Router.PATCH("/api/offers/{id}", func(re *core.RequestEvent) error {
		return handleOfferUpdate(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

	e.Router.DELETE("/api/offers/{id}", func(re *core.RequestEvent) error {
		return handleOfferDelete(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireAdmin)

	e.Router.POST("/api/offers/{id}/share", func(re *core.RequestEvent) error {
		return handleOfferShare(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

	e.Router.POST("/api/offers/{id}/convert", func(re *core.RequestEvent) error {
		return handleOfferConvert(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireManager)

	log.Printf("[Routes] Registered API endpoints")
}

// serveFrontend serves the SPA frontend
func serveFrontend(e *core.ServeEvent) {
	staticDir := "./pb_public"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		staticDir = "../frontend/dist"
	}

	e.Router.GET("/{path...}", func(re *core.RequestEvent) error {
		path := re.Request.PathValue("path")

		// Don't handle API routes - let them 404 if not matched
		if len(path) >= 4 && path[:4] == "api/" {
			return re.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
		}

		if path == "" || path == "/" {
			return re.FileFS(os.DirFS(staticDir), "index.html")
		}

		if info, err := os.Stat(staticDir + "/" + path); err == nil && !info.IsDir() {
			return re.FileFS(os.DirFS(staticDir), path)
		}

		// SPA fallback - serve index.html for client-side routing
		return re.FileFS(os.DirFS(staticDir), "index.html")
	})
}

// registerEncryptionHooks encrypts client PII after validation, before the
// database write
func registerEncryptionHooks(app core.App) {
	encrypt := func(e *core.RecordEvent) error {
		if _, err := utils.DefaultCipher().EncryptRecord(e.Record); err != nil {
			return fmt.Errorf("encrypt %s: %w", e.Record.Collection().Name, err)
		}
		return e.Next()
	}
	app.OnRecordCreateExecute(utils.CollectionClients).BindFunc(encrypt)
	app.OnRecordUpdateExecute(utils.CollectionClients).BindFunc(encrypt)
}

// registerAuditHooks sets up audit logging for CRUD operations and auth events
func registerAuditHooks(app core.App) {
	for _, coll := range utils.TenantCollections {
		app.OnRecordAfterCreateSuccess(coll).BindFunc(func(e *core.RecordEvent) error {
			utils.LogRecordChange(app, "create", e.Record, map[string]any{
				"data": auditData(e.Record),
			})
			return e.Next()
		})

		app.OnRecordAfterUpdateSuccess(coll).BindFunc(func(e *core.RecordEvent) error {
			utils.LogRecordChange(app, "update", e.Record, map[string]any{
				"data": auditData(e.Record),
			})
			return e.Next()
		})

		app.OnRecordAfterDeleteSuccess(coll).BindFunc(func(e *core.RecordEvent) error {
			utils.LogRecordChange(app, "delete", e.Record, nil)
			return e.Next()
		})
	}

	app.OnRecordAuthRequest(utils.CollectionUsers).BindFunc(func(e *core.RecordAuthRequestEvent) error {
		utils.LogAuthEvent(app, "login", e.Record, "success")
		return e.Next()
	})
}

// auditData is the record data kept in the audit log; PII and hidden
// fields are left out.
func auditData(r *core.Record) map[string]any {
	data := r.FieldsData()
	for _, f := range utils.PIIFields[r.Collection().Name] {
		delete(data, f)
	}
	delete(data, "email_index")
	delete(data, "share_token")
	return data
}

// runPIIEncryptionMigration encrypts all unencrypted client PII
func runPIIEncryptionMigration(app core.App) error {
	cipher := utils.DefaultCipher()
	if !cipher.Enabled() {
		return fmt.Errorf("ENCRYPTION_KEY not set - cannot encrypt data")
	}

	log.Println("[EncryptPII] Starting PII encryption migration...")

	records, err := app.FindAllRecords(utils.CollectionClients)
	if err != nil {
		return fmt.Errorf("failed to fetch clients: %w", err)
	}

	log.Printf("[EncryptPII] Found %d clients to process", len(records))

	migrated, skipped, failed := 0, 0, 0
	for _, record := range records {
		changed, err := cipher.EncryptRecord(record)
		if err != nil {
			log.Printf("[EncryptPII] Warning: failed to encrypt client %s: %v", record.Id, err)
			failed++
			continue
		}
		if !changed {
			skipped++
			continue
		}
		if err := app.SaveNoValidate(record); err != nil {
			log.Printf("[EncryptPII] Error: failed to save client %s: %v", record.Id, err)
			failed++
			continue
		}
		migrated++
	}

	log.Printf("[EncryptPII] Migration complete: %d encrypted, %d already encrypted/empty, %d errors", migrated, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d clients failed to encrypt", failed)
	}
	return nil
}
