package postgres

import (
	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// Store bundles every repository over one connection pool. It mirrors the
// accessor set of the in-memory store so the two are interchangeable at wiring.
type Store struct {
	conn *Connection
}

// NewStore creates a Store.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Tx returns the transaction runner repositories join through the context.
func (s *Store) Tx() shared.Transactor { return s.conn }

func (s *Store) Wallets() economy.Repository            { return NewWalletRepository(s.conn) }
func (s *Store) Daily() daily.Repository                { return NewDailyRepository(s.conn) }
func (s *Store) Sessions() practice.SessionRepository   { return NewSessionRepository(s.conn) }
func (s *Store) Questions() practice.QuestionCatalog    { return NewQuestionRepository(s.conn) }
func (s *Store) Cycles() practice.CycleRepository       { return NewCycleRepository(s.conn) }
func (s *Store) Pets() pet.Repository                   { return NewPetRepository(s.conn) }
func (s *Store) Catalog() pet.Catalog                   { return NewCatalogRepository(s.conn) }
func (s *Store) Rewards() leaderboard.Repository        { return NewLeaderboardRepository(s.conn) }
func (s *Store) Links() access.LinkRepository           { return NewLinkRepository(s.conn) }
func (s *Store) Keys() access.KeyRepository             { return NewKeyRepository(s.conn) }

var (
	_ shared.Transactor          = (*Connection)(nil)
	_ economy.Repository         = (*WalletRepository)(nil)
	_ daily.Repository           = (*DailyRepository)(nil)
	_ practice.SessionRepository = (*SessionRepository)(nil)
	_ practice.QuestionCatalog   = (*QuestionRepository)(nil)
	_ practice.CycleRepository   = (*CycleRepository)(nil)
	_ pet.Repository             = (*PetRepository)(nil)
	_ pet.Catalog                = (*CatalogRepository)(nil)
	_ leaderboard.Repository     = (*LeaderboardRepository)(nil)
	_ access.LinkRepository      = (*LinkRepository)(nil)
	_ access.KeyRepository       = (*KeyRepository)(nil)
)
