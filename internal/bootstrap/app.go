package bootstrap

import (
	"github.com/studypets/studypets-core/internal/application/command"
	"github.com/studypets/studypets-core/internal/application/query"
	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// Application holds every command and query handler, built over one Infra.
type Application struct {
	Policy *access.Policy

	// Commands
	CreateSession     *command.CreateSessionHandler
	SubmitAnswer      *command.SubmitAnswerHandler
	CompleteSession   *command.CompleteSessionHandler
	DailyStatus       *command.DailyStatusHandler
	ExchangeFood      *command.ExchangeFoodHandler
	Pull              *command.PullHandler
	PetEvolution      *command.PetEvolutionHandler
	CombinePets       *command.CombinePetsHandler
	AcknowledgeReward *command.AcknowledgeRewardHandler
	SyncSubscription  *command.SyncSubscriptionHandler
	DistributeRewards *command.DistributeWeeklyRewardsHandler

	// Queries
	Students    *query.StudentHandler
	Practice    *query.PracticeHandler
	Collection  *query.CollectionHandler
	Leaderboard *query.GetWeeklyLeaderboardHandler
}

// AppOption adjusts the command dependencies NewApplication builds.
type AppOption func(*command.Deps)

// WithRand fixes the random source used by spins and pulls.
func WithRand(r shared.Rand) AppOption {
	return func(d *command.Deps) { d.Rand = r }
}

// NewApplication wires the handlers with the configured game balance.
func NewApplication(infra *Infra, opts ...AppOption) *Application {
	store := infra.Store
	balance := infra.Config.Economy

	deps := command.Deps{
		Tx:         store.Tx(),
		Wallets:    store.Wallets(),
		Daily:      store.Daily(),
		Sessions:   store.Sessions(),
		Questions:  store.Questions(),
		Cycles:     store.Cycles(),
		Pets:       store.Pets(),
		Catalog:    store.Catalog(),
		Rewards:    store.Rewards(),
		Events:     infra.Bus,
		Clock:      infra.Clock,
		Logger:     infra.Logger,
		TxAttempts: infra.Config.Database.TxAttempts,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	policy := access.NewPolicy(store.Links())

	return &Application{
		Policy: policy,

		CreateSession:     command.NewCreateSessionHandler(deps, economy.WalletTierResolver{Wallets: deps.Wallets}, balance.TierLimits),
		SubmitAnswer:      command.NewSubmitAnswerHandler(deps),
		CompleteSession:   command.NewCompleteSessionHandler(deps, balance.SessionReward),
		DailyStatus:       command.NewDailyStatusHandler(deps, balance.SpinTable),
		ExchangeFood:      command.NewExchangeFoodHandler(deps, balance.FoodExchange()),
		Pull:              command.NewPullHandler(deps, balance.Pets),
		PetEvolution:      command.NewPetEvolutionHandler(deps, balance.Pets),
		CombinePets:       command.NewCombinePetsHandler(deps, balance.Pets),
		AcknowledgeReward: command.NewAcknowledgeRewardHandler(deps),
		SyncSubscription:  command.NewSyncSubscriptionHandler(deps),
		DistributeRewards: command.NewDistributeWeeklyRewardsHandler(deps, balance.WeeklyRewards, infra.Locker()),

		Students:    query.NewStudentHandler(policy, deps.Wallets, deps.Daily, deps.Sessions, balance.TierLimits, infra.Clock),
		Practice:    query.NewPracticeHandler(policy, deps.Sessions, deps.Questions, deps.Cycles),
		Collection:  query.NewCollectionHandler(policy, deps.Pets, deps.Rewards, balance.Pets),
		Leaderboard: query.NewGetWeeklyLeaderboardHandler(deps.Rewards, deps.Daily, infra.BoardCache(), balance.WeeklyRewards, infra.Clock, balance.LeaderboardCacheTTL, infra.Logger),
	}
}
