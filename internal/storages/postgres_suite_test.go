package storage

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	aliceId = "74cccd17-9c56-490b-b721-88c027976863"
	bobId   = "67f85047-09d0-42a2-a5ee-9ce8db28cb07"
	carolId = "253becbb-76b1-4471-9ff3-529462925899"
)

type PostgresTestSuite struct {
	suite.Suite
	db *sqlx.DB
	m  *migrate.Migrate
}

func (s *PostgresTestSuite) SetupSuite() {
	var err error
	viper.AutomaticEnv()
	dbDsn := viper.GetString("DB_DSN")
	migrationsDsn := viper.GetString("MIGRATIONS_DSN")
	migrationsDir := viper.GetString("MIGRATIONS_DIR")

	if dbDsn == "" || migrationsDsn == "" || migrationsDir == "" {
		s.T().Skip("DB_DSN, MIGRATIONS_DSN and MIGRATIONS_DIR must be defined for storage tests")
	}

	s.db, err = sqlx.Connect("pgx", dbDsn)
	require.NoError(s.T(), err, "failed to connect to database")

	s.m, err = migrate.New(migrationsDir, migrationsDsn)

	require.NoError(s.T(), err, "failed to open migrations")

	err = s.m.Up()
	if err != migrate.ErrNoChange {
		require.NoError(s.T(), err, "failed to migrate database")
	}
}

func (s *PostgresTestSuite) TearDownSuite() {
	if s.m != nil {
		_ = s.m.Down()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *PostgresTestSuite) truncate() {
	_, err := s.db.Exec("TRUNCATE messages, chat_requests, group_members, groups, profiles")
	require.NoError(s.T(), err, "can't teardown test")
}

// seedProfiles inserts alice, bob and carol.
func (s *PostgresTestSuite) seedProfiles() {
	_, err := s.db.Exec(`
		INSERT INTO profiles (id, email, display_name) VALUES
		    ($1, 'alice@example.com', 'Alice'),
		    ($2, 'bob@example.com', 'Bob'),
		    ($3, 'carol@example.com', 'Carol')`,
		aliceId, bobId, carolId,
	)
	require.NoError(s.T(), err, "can't seed profiles")
}
