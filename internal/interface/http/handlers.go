package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/studypets/studypets-core/internal/application/command"
	"github.com/studypets/studypets-core/internal/application/query"
	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/internal/interface/http/handlers"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

// Deeper checks (duplicates, cycle numbers, pet counts) belong to the
// domain and keep their specific error codes.

type createSessionRequest struct {
	TopicID        string   `json:"topic_id" validate:"required,max=128"`
	CurriculumRefs []string `json:"curriculum_refs" validate:"max=32,dive,required,max=128"`
	QuestionIDs    []string `json:"question_ids" validate:"required,max=500,dive,max=128"`
	CycleNumber    int      `json:"cycle_number"`
}

type submitAnswerRequest struct {
	QuestionID       string   `json:"question_id" validate:"required,max=128"`
	SelectedOptions  []string `json:"selected_options" validate:"max=32,dive,max=128"`
	TextAnswer       string   `json:"text_answer" validate:"max=2000"`
	TimeSpentSeconds int      `json:"time_spent_seconds" validate:"gte=0,lte=86400"`
}

type setMoodRequest struct {
	Mood string `json:"mood" validate:"required,oneof=happy excited okay tired sad"`
}

type exchangeFoodRequest struct {
	Food int `json:"food" validate:"gte=1,lte=10000"`
}

type pullRequest struct {
	Multi bool `json:"multi"`
}

type feedPetRequest struct {
	Food int `json:"food" validate:"gte=1,lte=10000"`
}

type combinePetsRequest struct {
	OwnedPetIDs []string `json:"owned_pet_ids" validate:"max=16,dive,required"`
}

type syncSubscriptionRequest struct {
	Tier string `json:"tier" validate:"required,oneof=core plus pro"`
}

type distributeRewardsRequest struct {
	WeekStart string `json:"week_start" validate:"required,datetime=2006-01-02"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE BODIES
// ══════════════════════════════════════════════════════════════════════════════

type dailyStatusResponse struct {
	Date         timeutil.Date `json:"date"`
	HasPracticed bool          `json:"has_practiced"`
	Mood         *daily.Mood   `json:"mood"`
	HasSpun      bool          `json:"has_spun"`
	SpinReward   *int          `json:"spin_reward"`
}

// leaderboardRow is the public view of a ranked student: no ids.
type leaderboardRow struct {
	Rank        int    `json:"rank"`
	DisplayName string `json:"display_name"`
	WeeklyXP    int    `json:"weekly_xp"`
	Streak      int    `json:"streak"`
	IsMe        bool   `json:"is_me,omitempty"`
}

type leaderboardResponse struct {
	WeekStart   timeutil.Date    `json:"week_start"`
	Entries     []leaderboardRow `json:"entries"`
	TotalRanked int              `json:"total_ranked"`
	RewardTable []int            `json:"reward_table"`
	IsFinalized bool             `json:"is_finalized"`
	GeneratedAt time.Time        `json:"generated_at"`
}

type distributionResponse struct {
	WeekStart          timeutil.Date `json:"week_start"`
	AlreadyDistributed bool          `json:"already_distributed"`
	RankedStudents     int           `json:"ranked_students"`
	Recipients         int           `json:"recipients"`
	CoinsPaid          int           `json:"coins_paid"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "studypets-core",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":      "/health",
			"sessions":    "/api/v1/sessions",
			"leaderboard": "/api/v1/leaderboard/weekly",
			"wallet":      "/api/v1/students/me/wallet",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"uptime":  s.Uptime().Round(time.Second).String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if status := s.deps.HealthChecker.Check(r.Context()); !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateSession handles POST /api/v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateSession == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}
	var req createSessionRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.CreateSession.Handle(r.Context(), command.CreateSessionCommand{
		StudentID:      studentID,
		TopicID:        req.TopicID,
		CurriculumRefs: req.CurriculumRefs,
		QuestionIDs:    req.QuestionIDs,
		CycleNumber:    req.CycleNumber,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

// handleGetSession handles GET /api/v1/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Practice == nil {
		notConfigured(w, r)
		return
	}
	result, err := s.deps.Practice.Session(r.Context(), query.GetSessionQuery{
		Actor:     handlers.ActorFromContext(r.Context()),
		SessionID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleSubmitAnswer handles POST /api/v1/sessions/{id}/answers
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitAnswer == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}
	var req submitAnswerRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.SubmitAnswer.Handle(r.Context(), command.SubmitAnswerCommand{
		StudentID:        studentID,
		SessionID:        r.PathValue("id"),
		QuestionID:       req.QuestionID,
		SelectedOptions:  req.SelectedOptions,
		TextAnswer:       req.TextAnswer,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

// handleCompleteSession handles POST /api/v1/sessions/{id}/complete
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompleteSession == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}

	result, err := s.deps.CompleteSession.Handle(r.Context(), command.CompleteSessionCommand{
		StudentID: studentID,
		SessionID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY STATUS & ECONOMY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSetMood handles PUT /api/v1/daily/mood
func (s *Server) handleSetMood(w http.ResponseWriter, r *http.Request) {
	if s.deps.DailyStatus == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}
	var req setMoodRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.DailyStatus.SetMood(r.Context(), command.SetMoodCommand{
		StudentID: studentID,
		Mood:      req.Mood,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleSpin handles POST /api/v1/daily/spin
func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	if s.deps.DailyStatus == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}

	result, err := s.deps.DailyStatus.Spin(r.Context(), command.SpinCommand{StudentID: studentID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleExchangeFood handles POST /api/v1/economy/food
func (s *Server) handleExchangeFood(w http.ResponseWriter, r *http.Request) {
	if s.deps.ExchangeFood == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}
	var req exchangeFoodRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.ExchangeFood.Handle(r.Context(), command.ExchangeFoodCommand{
		StudentID: studentID,
		Food:      req.Food,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// GACHA & PET HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePull handles POST /api/v1/gacha/pull. An empty body is a single pull.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pull == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}
	var req pullRequest
	if r.ContentLength != 0 {
		if err := handlers.DecodeAndValidate(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	result, err := s.deps.Pull.Handle(r.Context(), command.PullCommand{
		StudentID: studentID,
		Multi:     req.Multi,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleFeedPet handles POST /api/v1/pets/{id}/feed
func (s *Server) handleFeedPet(w http.ResponseWriter, r *http.Request) {
	if s.deps.PetEvolution == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}
	var req feedPetRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.PetEvolution.Feed(r.Context(), command.FeedPetCommand{
		StudentID:  studentID,
		OwnedPetID: r.PathValue("id"),
		Food:       req.Food,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleEvolvePet handles POST /api/v1/pets/{id}/evolve
func (s *Server) handleEvolvePet(w http.ResponseWriter, r *http.Request) {
	if s.deps.PetEvolution == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}

	result, err := s.deps.PetEvolution.Evolve(r.Context(), command.EvolvePetCommand{
		StudentID:  studentID,
		OwnedPetID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleCombinePets handles POST /api/v1/pets/combine
func (s *Server) handleCombinePets(w http.ResponseWriter, r *http.Request) {
	if s.deps.CombinePets == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}
	var req combinePetsRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.CombinePets.Handle(r.Context(), command.CombinePetsCommand{
		StudentID:   studentID,
		OwnedPetIDs: req.OwnedPetIDs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD & REWARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleWeeklyLeaderboard handles GET /api/v1/leaderboard/weekly?week_start=&limit=
func (s *Server) handleWeeklyLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Leaderboard == nil {
		notConfigured(w, r)
		return
	}
	actor := handlers.ActorFromContext(r.Context())

	week, err := dateParam(r, "week_start")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Leaderboard.Handle(r.Context(), query.GetWeeklyLeaderboardQuery{
		Actor:     actor,
		WeekStart: week,
		Limit:     limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows := make([]leaderboardRow, len(result.Entries))
	for i, e := range result.Entries {
		rows[i] = leaderboardRow{
			Rank:        e.Rank,
			DisplayName: e.DisplayName,
			WeeklyXP:    e.WeeklyXP,
			Streak:      e.Streak,
			IsMe:        actor.Role == access.RoleStudent && string(e.StudentID) == actor.UserID,
		}
	}
	writeJSON(w, r, http.StatusOK, leaderboardResponse{
		WeekStart:   result.WeekStart,
		Entries:     rows,
		TotalRanked: result.TotalRanked,
		RewardTable: result.RewardTable,
		IsFinalized: result.IsFinalized,
		GeneratedAt: result.GeneratedAt,
	})
}

// handleAcknowledgeReward handles POST /api/v1/rewards/{id}/acknowledge
func (s *Server) handleAcknowledgeReward(w http.ResponseWriter, r *http.Request) {
	if s.deps.AcknowledgeReward == nil {
		notConfigured(w, r)
		return
	}
	studentID, ok := s.actingStudent(w, r)
	if !ok {
		return
	}

	result, err := s.deps.AcknowledgeReward.Handle(r.Context(), command.AcknowledgeRewardCommand{
		StudentID: studentID,
		RewardID:  r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetWallet handles GET /api/v1/students/{id}/wallet
func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Students == nil {
		notConfigured(w, r)
		return
	}
	actor, studentID, ok := s.readTarget(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Students.Wallet(r.Context(), query.GetWalletQuery{Actor: actor, StudentID: studentID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetStreak handles GET /api/v1/students/{id}/streak?mode=live|cached
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.Students == nil {
		notConfigured(w, r)
		return
	}
	actor, studentID, ok := s.readTarget(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Students.Streak(r.Context(), query.GetStreakQuery{
		Actor:     actor,
		StudentID: studentID,
		Mode:      query.StreakMode(r.URL.Query().Get("mode")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetDailyStatus handles GET /api/v1/students/{id}/daily?from=&to=
func (s *Server) handleGetDailyStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Students == nil {
		notConfigured(w, r)
		return
	}
	actor, studentID, ok := s.readTarget(w, r)
	if !ok {
		return
	}
	from, err := dateParam(r, "from")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := dateParam(r, "to")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	days, err := s.deps.Students.DailyStatus(r.Context(), query.GetDailyStatusQuery{
		Actor:     actor,
		StudentID: studentID,
		From:      from,
		To:        to,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]dailyStatusResponse, len(days))
	for i, d := range days {
		out[i] = dailyStatusResponse{
			Date:         d.Date,
			HasPracticed: d.HasPracticed,
			Mood:         d.Mood,
			HasSpun:      d.HasSpun,
			SpinReward:   d.SpinReward,
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleListSessions handles GET /api/v1/students/{id}/sessions?limit=
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Practice == nil {
		notConfigured(w, r)
		return
	}
	actor, studentID, ok := s.readTarget(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Practice.Sessions(r.Context(), query.ListSessionsQuery{
		Actor:     actor,
		StudentID: studentID,
		Limit:     limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleUnseenQuestions handles GET /api/v1/students/{id}/topics/{topic}/unseen
func (s *Server) handleUnseenQuestions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Practice == nil {
		notConfigured(w, r)
		return
	}
	actor, studentID, ok := s.readTarget(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Practice.UnseenQuestions(r.Context(), query.GetUnseenQuestionsQuery{
		Actor:     actor,
		StudentID: studentID,
		TopicID:   r.PathValue("topic"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleListPets handles GET /api/v1/students/{id}/pets
func (s *Server) handleListPets(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collection == nil {
		notConfigured(w, r)
		return
	}
	actor, studentID, ok := s.readTarget(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Collection.Pets(r.Context(), query.ListPetsQuery{Actor: actor, StudentID: studentID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleUnseenRewards handles GET /api/v1/students/{id}/rewards/unseen
func (s *Server) handleUnseenRewards(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collection == nil {
		notConfigured(w, r)
		return
	}
	actor, studentID, ok := s.readTarget(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Collection.UnseenRewards(r.Context(), query.ListUnseenRewardsQuery{Actor: actor, StudentID: studentID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSyncSubscription handles PUT /api/v1/admin/students/{id}/subscription
func (s *Server) handleSyncSubscription(w http.ResponseWriter, r *http.Request) {
	if s.deps.SyncSubscription == nil {
		notConfigured(w, r)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	studentID, err := shared.NewStudentID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req syncSubscriptionRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.SyncSubscription.Handle(r.Context(), command.SyncSubscriptionCommand{
		StudentID: studentID,
		Tier:      req.Tier,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleDistributeRewards handles POST /api/v1/admin/weekly-rewards. Running
// it for an already paid week is a no-op reported as already_distributed.
func (s *Server) handleDistributeRewards(w http.ResponseWriter, r *http.Request) {
	if s.deps.DistributeRewards == nil {
		notConfigured(w, r)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	var req distributeRewardsRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	week, err := timeutil.ParseDate(req.WeekStart)
	if err != nil {
		s.writeError(w, r, invalidParam("week_start", err))
		return
	}

	result, err := s.deps.DistributeRewards.Handle(r.Context(), command.DistributeWeeklyRewardsCommand{WeekStart: week})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, distributionResponse{
		WeekStart:          result.WeekStart,
		AlreadyDistributed: result.AlreadyDistributed,
		RankedStudents:     result.RankedStudents,
		Recipients:         len(result.Rewards),
		CoinsPaid:          result.CoinsPaid,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CALLER & PARAMETER HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// actingStudent resolves the student a mutation acts on and writes the
// error response when there is none.
func (s *Server) actingStudent(w http.ResponseWriter, r *http.Request) (shared.StudentID, bool) {
	studentID, err := s.deps.Policy.ActingStudent(handlers.ActorFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	return studentID, true
}

// readTarget resolves the {id} path segment; "me" names the caller.
func (s *Server) readTarget(w http.ResponseWriter, r *http.Request) (access.Actor, shared.StudentID, bool) {
	actor := handlers.ActorFromContext(r.Context())
	if actor.IsZero() {
		s.writeError(w, r, shared.ErrNotAuthenticated)
		return actor, "", false
	}

	raw := r.PathValue("id")
	if raw == "me" {
		raw = actor.UserID
	}
	studentID, err := shared.NewStudentID(raw)
	if err != nil {
		s.writeError(w, r, err)
		return actor, "", false
	}
	return actor, studentID, true
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if err := s.deps.Policy.RequireAdmin(handlers.ActorFromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return false
	}
	return true
}

func notConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, &APIError{
		Code:    "not_implemented",
		Message: "operation not configured on this instance",
	})
}

var errInvalidParam = shared.NewDomainError("http", "Params", shared.ErrInvalidInput, "invalid_parameter", "invalid query parameter")

func invalidParam(name string, err error) error {
	return errInvalidParam.WithMessage("invalid %s", name).WithDetails(map[string]any{
		"parameter": name,
		"reason":    err.Error(),
	})
}

// dateParam parses an optional YYYY-MM-DD query parameter.
func dateParam(r *http.Request, key string) (timeutil.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return timeutil.Date{}, nil
	}
	d, err := timeutil.ParseDate(raw)
	if err != nil {
		return timeutil.Date{}, invalidParam(key, err)
	}
	return d, nil
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(key, err)
	}
	return n, nil
}
