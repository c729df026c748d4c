package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/EdwardMor3h/topico-enfermeria/internal/patient"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/config"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/metrics"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// PatientStore is the write surface the importer feeds
type PatientStore interface {
	UpsertLegacy(ctx context.Context, p *patient.Patient) error
}

// Importer polls the retired SQL Server practice-management system and
// upserts its patients into the clinic. The import is one-way; the
// legacy system is never written to.
type Importer struct {
	db     *sql.DB
	config config.LegacyConfig
	store  PatientStore

	running  bool
	mu       sync.Mutex
	cancel   context.CancelFunc
	lastSync time.Time
	wg       sync.WaitGroup
}

// New creates a new legacy importer
func New(cfg config.LegacyConfig, store PatientStore) *Importer {
	return &Importer{config: cfg, store: store}
}

// Start connects to the legacy database and begins polling
func (i *Importer) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running {
		return fmt.Errorf("importer already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		i.config.Host,
		i.config.Port,
		i.config.Database,
		i.config.User,
		i.config.Password,
	)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open legacy database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping legacy database: %w", err)
	}

	i.db = db
	i.running = true
	// First poll picks up everything
	i.lastSync = time.Time{}

	pollCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel

	i.wg.Add(1)
	go i.pollLoop(pollCtx)

	return nil
}

// Stop stops polling and closes the connection
func (i *Importer) Stop(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running {
		return nil
	}

	if i.cancel != nil {
		i.cancel()
	}

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if i.db != nil {
		i.db.Close()
	}

	i.running = false
	return nil
}

// Health checks legacy database connectivity
func (i *Importer) Health(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running {
		return fmt.Errorf("importer not running")
	}
	return i.db.PingContext(ctx)
}

func (i *Importer) pollLoop(ctx context.Context) {
	defer i.wg.Done()

	ticker := time.NewTicker(i.config.PollInterval)
	defer ticker.Stop()

	// Import once at startup, then on every tick
	i.runImport(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.runImport(ctx)
		}
	}
}

func (i *Importer) runImport(ctx context.Context) {
	i.mu.Lock()
	since := i.lastSync
	started := time.Now()
	i.mu.Unlock()

	count, err := i.importPatients(ctx, since)
	if err != nil {
		log.Printf("legacy import failed: %v", err)
		return
	}

	i.mu.Lock()
	i.lastSync = started
	i.mu.Unlock()

	if count > 0 {
		metrics.RecordLegacyImport(count)
		log.Printf("legacy import: %d patients upserted", count)
	}
}

// importPatients fetches legacy patients modified since the given time
// and upserts them. Rows with invalid DNIs are skipped, not fatal.
func (i *Importer) importPatients(ctx context.Context, since time.Time) (int, error) {
	query := fmt.Sprintf(`
		SELECT TOP (%d)
			PacienteID,
			DNI,
			Nombres,
			Apellidos,
			FechaNacimiento,
			Sexo,
			GrupoSanguineo,
			Alergias,
			Telefono,
			Celular,
			Correo,
			Direccion,
			Distrito,
			Ciudad,
			FechaModificacion
		FROM %s
		WHERE FechaModificacion > @since
		ORDER BY FechaModificacion ASC
	`, i.config.BatchSize, i.config.PatientTable)

	rows, err := i.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return 0, fmt.Errorf("failed to query legacy patients: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var (
			legacyID   string
			dni        string
			firstName  string
			lastName   string
			birthDate  time.Time
			sexo       string
			bloodType  sql.NullString
			allergies  sql.NullString
			phone      sql.NullString
			mobile     sql.NullString
			email      sql.NullString
			street     sql.NullString
			district   sql.NullString
			city       sql.NullString
			modifiedAt time.Time
		)

		err := rows.Scan(
			&legacyID, &dni, &firstName, &lastName, &birthDate, &sexo,
			&bloodType, &allergies, &phone, &mobile, &email,
			&street, &district, &city, &modifiedAt,
		)
		if err != nil {
			return count, fmt.Errorf("failed to scan legacy patient: %w", err)
		}

		parsedDNI, err := types.ParseDNI(dni)
		if err != nil {
			log.Printf("legacy import: skipping patient %s: %v", legacyID, err)
			continue
		}

		p := &patient.Patient{
			ID:        types.NewID(),
			DNI:       parsedDNI,
			FirstName: firstName,
			LastName:  lastName,
			BirthDate: birthDate,
			Gender:    mapGender(sexo),
			Address: types.Address{
				Street:   street.String,
				District: district.String,
				City:     city.String,
				Country:  "PE",
			},
			Contact: types.ContactInfo{
				Phone:  phone.String,
				Mobile: mobile.String,
				Email:  email.String,
			},
			LegacyRef: &legacyID,
		}
		if bloodType.Valid {
			p.BloodType = &bloodType.String
		}
		if allergies.Valid {
			p.Allergies = &allergies.String
		}

		if err := i.store.UpsertLegacy(ctx, p); err != nil {
			log.Printf("legacy import: failed to upsert patient %s: %v", legacyID, err)
			continue
		}
		count++
	}

	return count, rows.Err()
}

func mapGender(code string) patient.Gender {
	switch code {
	case "F", "f", "2":
		return patient.GenderFemale
	case "M", "m", "1":
		return patient.GenderMale
	default:
		return patient.GenderOther
	}
}
