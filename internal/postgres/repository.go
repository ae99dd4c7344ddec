package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddock-market/internal/config"
	"github.com/paddock-market/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS constructors (
			id BIGSERIAL PRIMARY KEY,
			sport VARCHAR(16) NOT NULL,
			name VARCHAR(128) NOT NULL,
			price BIGINT NOT NULL DEFAULT 0,
			initial_price BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS riders (
			id BIGSERIAL PRIMARY KEY,
			sport VARCHAR(16) NOT NULL,
			name VARCHAR(128) NOT NULL,
			team_name VARCHAR(128) NOT NULL DEFAULT '',
			constructor_id BIGINT REFERENCES constructors(id) ON DELETE SET NULL,
			base_price BIGINT NOT NULL DEFAULT 0,
			price BIGINT NOT NULL DEFAULT 0,
			initial_price BIGINT NOT NULL DEFAULT 0,
			condition VARCHAR(16) NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS races (
			id BIGSERIAL PRIMARY KEY,
			sport VARCHAR(16) NOT NULL,
			round INT NOT NULL,
			name VARCHAR(128) NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			price_adjusted BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			id BIGSERIAL PRIMARY KEY,
			sport VARCHAR(16) NOT NULL,
			name VARCHAR(64) NOT NULL,
			rider_ids BIGINT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS team_snapshots (
			id BIGSERIAL PRIMARY KEY,
			sport VARCHAR(16) NOT NULL,
			participant_id BIGINT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
			race_id BIGINT REFERENCES races(id) ON DELETE SET NULL,
			rider_ids BIGINT[] NOT NULL,
			constructor_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rider_round_points (
			race_id BIGINT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
			rider_id BIGINT NOT NULL REFERENCES riders(id) ON DELETE CASCADE,
			sport VARCHAR(16) NOT NULL,
			main DOUBLE PRECISION NOT NULL DEFAULT 0,
			sprint DOUBLE PRECISION NOT NULL DEFAULT 0,
			total DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (race_id, rider_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_riders_sport ON riders(sport)`,
		`CREATE INDEX IF NOT EXISTS idx_races_sport_schedule ON races(sport, scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_participant ON team_snapshots(participant_id, race_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_points_sport ON rider_round_points(sport)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// ListRiders retrieves every rider of a sport
func (r *Repository) ListRiders(ctx context.Context, sport domain.Sport) ([]domain.Rider, error) {
	query := `
		SELECT id, sport, name, team_name, constructor_id, base_price, price, initial_price, condition
		FROM riders
		WHERE sport = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, sport)
	if err != nil {
		return nil, fmt.Errorf("listing riders: %w", err)
	}
	defer rows.Close()

	var riders []domain.Rider
	for rows.Next() {
		var rider domain.Rider
		err := rows.Scan(
			&rider.ID,
			&rider.Sport,
			&rider.Name,
			&rider.TeamName,
			&rider.ConstructorID,
			&rider.BasePrice,
			&rider.Price,
			&rider.InitialPrice,
			&rider.Condition,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning rider: %w", err)
		}
		riders = append(riders, rider)
	}
	return riders, rows.Err()
}

// ListConstructors retrieves every constructor of a sport
func (r *Repository) ListConstructors(ctx context.Context, sport domain.Sport) ([]domain.Constructor, error) {
	query := `
		SELECT id, sport, name, price, initial_price
		FROM constructors
		WHERE sport = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, sport)
	if err != nil {
		return nil, fmt.Errorf("listing constructors: %w", err)
	}
	defer rows.Close()

	var constructors []domain.Constructor
	for rows.Next() {
		var c domain.Constructor
		if err := rows.Scan(&c.ID, &c.Sport, &c.Name, &c.Price, &c.InitialPrice); err != nil {
			return nil, fmt.Errorf("scanning constructor: %w", err)
		}
		constructors = append(constructors, c)
	}
	return constructors, rows.Err()
}

// ListRaces retrieves the calendar of a sport
func (r *Repository) ListRaces(ctx context.Context, sport domain.Sport) ([]domain.Race, error) {
	query := `
		SELECT id, sport, round, name, scheduled_at, price_adjusted
		FROM races
		WHERE sport = $1
		ORDER BY scheduled_at, round, id
	`
	rows, err := r.pool.Query(ctx, query, sport)
	if err != nil {
		return nil, fmt.Errorf("listing races: %w", err)
	}
	defer rows.Close()

	var races []domain.Race
	for rows.Next() {
		var race domain.Race
		err := rows.Scan(&race.ID, &race.Sport, &race.Round, &race.Name, &race.ScheduledAt, &race.PriceAdjusted)
		if err != nil {
			return nil, fmt.Errorf("scanning race: %w", err)
		}
		races = append(races, race)
	}
	return races, rows.Err()
}

// ListParticipants retrieves every participant of a sport
func (r *Repository) ListParticipants(ctx context.Context, sport domain.Sport) ([]domain.Participant, error) {
	query := `
		SELECT id, sport, name, rider_ids, created_at
		FROM participants
		WHERE sport = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, sport)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.Sport, &p.Name, &p.RiderIDs, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ListSnapshots retrieves every team snapshot of a sport
func (r *Repository) ListSnapshots(ctx context.Context, sport domain.Sport) ([]domain.TeamSnapshot, error) {
	query := `
		SELECT id, sport, participant_id, race_id, rider_ids, constructor_id, created_at
		FROM team_snapshots
		WHERE sport = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, sport)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.TeamSnapshot
	for rows.Next() {
		var (
			s      domain.TeamSnapshot
			raceID *int64
		)
		err := rows.Scan(&s.ID, &s.Sport, &s.ParticipantID, &raceID, &s.RiderIDs, &s.ConstructorID, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		if raceID != nil {
			s.RaceID = *raceID
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// ListRiderPoints retrieves all recorded rider points of a sport
func (r *Repository) ListRiderPoints(ctx context.Context, sport domain.Sport) ([]domain.RiderRoundPoints, error) {
	query := `
		SELECT race_id, rider_id, total, main, sprint
		FROM rider_round_points
		WHERE sport = $1
		ORDER BY race_id, rider_id
	`
	rows, err := r.pool.Query(ctx, query, sport)
	if err != nil {
		return nil, fmt.Errorf("listing rider points: %w", err)
	}
	defer rows.Close()

	var points []domain.RiderRoundPoints
	for rows.Next() {
		var p domain.RiderRoundPoints
		if err := rows.Scan(&p.RaceID, &p.RiderID, &p.Total, &p.Main, &p.Sprint); err != nil {
			return nil, fmt.Errorf("scanning rider points: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// UpdateRiderPrices writes a price batch in one transaction
func (r *Repository) UpdateRiderPrices(ctx context.Context, sport domain.Sport, changes []domain.PriceChange) error {
	query := `UPDATE riders SET price = $2, updated_at = $3 WHERE id = $1 AND sport = $4`
	return r.updatePrices(ctx, query, sport, changes, domain.ErrRiderNotFound)
}

// UpdateConstructorPrices writes a price batch in one transaction
func (r *Repository) UpdateConstructorPrices(ctx context.Context, sport domain.Sport, changes []domain.PriceChange) error {
	query := `UPDATE constructors SET price = $2, updated_at = $3 WHERE id = $1 AND sport = $4`
	return r.updatePrices(ctx, query, sport, changes, domain.ErrConstructorNotFound)
}

func (r *Repository) updatePrices(ctx context.Context, query string, sport domain.Sport, changes []domain.PriceChange, notFound error) error {
	if len(changes) == 0 {
		return nil
	}
	now := time.Now()
	batch := &pgx.Batch{}
	for _, c := range changes {
		batch.Queue(query, c.ID, c.NewPrice, now, sport)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return execBatch(ctx, tx, batch, notFound)
	})
}

// MarkRacesPriceAdjusted sets the processed flag of every listed race
func (r *Repository) MarkRacesPriceAdjusted(ctx context.Context, sport domain.Sport, raceIDs []int64) error {
	if len(raceIDs) == 0 {
		return nil
	}
	query := `UPDATE races SET price_adjusted = TRUE WHERE sport = $1 AND id = ANY($2)`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, sport, raceIDs)
		if err != nil {
			return fmt.Errorf("flagging races: %w", err)
		}
		if result.RowsAffected() != int64(len(raceIDs)) {
			return domain.ErrRaceNotFound
		}
		return nil
	})
}

// InsertSnapshot appends a snapshot and mirrors its riders on the participant
func (r *Repository) InsertSnapshot(ctx context.Context, snapshot domain.TeamSnapshot) (domain.TeamSnapshot, error) {
	var raceID *int64
	if snapshot.RaceID != 0 {
		raceID = &snapshot.RaceID
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`UPDATE participants SET rider_ids = $2 WHERE id = $1 AND sport = $3`,
			snapshot.ParticipantID, snapshot.RiderIDs, snapshot.Sport,
		)
		if err != nil {
			return fmt.Errorf("updating participant roster: %w", err)
		}
		if result.RowsAffected() == 0 {
			return domain.ErrParticipantNotFound
		}

		query := `
			INSERT INTO team_snapshots (sport, participant_id, race_id, rider_ids, constructor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		return tx.QueryRow(ctx, query,
			snapshot.Sport,
			snapshot.ParticipantID,
			raceID,
			snapshot.RiderIDs,
			snapshot.ConstructorID,
			snapshot.CreatedAt,
		).Scan(&snapshot.ID)
	})
	if err != nil {
		return domain.TeamSnapshot{}, fmt.Errorf("inserting snapshot: %w", err)
	}
	return snapshot, nil
}

// UpsertRiderPoints inserts or replaces rider points in one transaction
func (r *Repository) UpsertRiderPoints(ctx context.Context, sport domain.Sport, points []domain.RiderRoundPoints) error {
	if len(points) == 0 {
		return nil
	}

	query := `
		INSERT INTO rider_round_points (race_id, rider_id, sport, main, sprint, total, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (race_id, rider_id)
		DO UPDATE SET main = $4, sprint = $5, total = $6, updated_at = $7
	`
	now := time.Now()
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(query, p.RaceID, p.RiderID, sport, p.Main, p.Sprint, p.Total, now)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return execBatch(ctx, tx, batch, nil)
	})
}

// CreateRace adds a race to the calendar
func (r *Repository) CreateRace(ctx context.Context, race domain.Race) (domain.Race, error) {
	query := `
		INSERT INTO races (sport, round, name, scheduled_at, price_adjusted)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query, race.Sport, race.Round, race.Name, race.ScheduledAt, race.PriceAdjusted).Scan(&race.ID)
	if err != nil {
		return domain.Race{}, fmt.Errorf("creating race: %w", err)
	}
	return race, nil
}

// UpdateRaceSchedule corrects the start time of a race
func (r *Repository) UpdateRaceSchedule(ctx context.Context, sport domain.Sport, raceID int64, at time.Time) error {
	result, err := r.pool.Exec(ctx, `UPDATE races SET scheduled_at = $3 WHERE id = $1 AND sport = $2`, raceID, sport, at)
	if err != nil {
		return fmt.Errorf("updating race schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRaceNotFound
	}
	return nil
}

// CreateParticipant registers a participant
func (r *Repository) CreateParticipant(ctx context.Context, participant domain.Participant) (domain.Participant, error) {
	if participant.RiderIDs == nil {
		participant.RiderIDs = []int64{}
	}
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO participants (sport, name, rider_ids, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		participant.Sport,
		participant.Name,
		participant.RiderIDs,
		participant.CreatedAt,
	).Scan(&participant.ID)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("creating participant: %w", err)
	}
	return participant, nil
}

// UpdateRider stores admin edits of a rider
func (r *Repository) UpdateRider(ctx context.Context, rider domain.Rider) error {
	query := `
		UPDATE riders
		SET team_name = $3, constructor_id = $4, price = $5, condition = $6, updated_at = $7
		WHERE id = $1 AND sport = $2
	`
	result, err := r.pool.Exec(ctx, query,
		rider.ID,
		rider.Sport,
		rider.TeamName,
		rider.ConstructorID,
		rider.Price,
		rider.Condition,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("updating rider: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRiderNotFound
	}
	return nil
}

// UpsertConstructors loads catalog constructors. Existing rows keep their
// current price.
func (r *Repository) UpsertConstructors(ctx context.Context, constructors []domain.Constructor) error {
	if len(constructors) == 0 {
		return nil
	}
	query := `
		INSERT INTO constructors (id, sport, name, price, initial_price)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id)
		DO UPDATE SET name = $3, updated_at = CURRENT_TIMESTAMP
	`
	batch := &pgx.Batch{}
	for _, c := range constructors {
		batch.Queue(query, c.ID, c.Sport, c.Name, c.Price)
	}
	return r.seed(ctx, "constructors", batch)
}

// UpsertRiders loads catalog riders. Existing rows keep their current price
// and condition.
func (r *Repository) UpsertRiders(ctx context.Context, riders []domain.Rider) error {
	if len(riders) == 0 {
		return nil
	}
	query := `
		INSERT INTO riders (id, sport, name, team_name, constructor_id, base_price, price, initial_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id)
		DO UPDATE SET name = $3, team_name = $4, constructor_id = $5, base_price = $6, updated_at = CURRENT_TIMESTAMP
	`
	batch := &pgx.Batch{}
	for _, rider := range riders {
		batch.Queue(query, rider.ID, rider.Sport, rider.Name, rider.TeamName, rider.ConstructorID, rider.BasePrice, rider.Price)
	}
	return r.seed(ctx, "riders", batch)
}

func (r *Repository) seed(ctx context.Context, table string, batch *pgx.Batch) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := execBatch(ctx, tx, batch, nil); err != nil {
			return fmt.Errorf("seeding %s: %w", table, err)
		}
		// explicit ids bypass the sequence
		query := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT MAX(id) FROM %s), 1))`,
			table, table,
		)
		if _, err := tx.Exec(ctx, query); err != nil {
			return fmt.Errorf("advancing %s sequence: %w", table, err)
		}
		return nil
	})
}

// execBatch runs every queued statement; with notFound set, each statement
// must touch exactly one row.
func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, notFound error) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		result, err := br.Exec()
		if err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
		if notFound != nil && result.RowsAffected() == 0 {
			br.Close()
			return notFound
		}
	}
	return br.Close()
}

