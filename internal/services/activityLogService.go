package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/repository"
	"github.com/arzan03/cloudvault/internal/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	maxIPLength        = 45
	maxUserAgentLength = 500
	notAvailable       = "N/A"
)

var (
	ipDisallowed = regexp.MustCompile(`[^0-9a-fA-F:.]`)
	csvHeader    = []string{"Timestamp", "Action", "User Name", "User Email", "IP Address", "User Agent"}
)

// Event is one share event to record.
type Event struct {
	ShareID    primitive.ObjectID
	AccessedBy primitive.ObjectID
	Action     models.Action
	IP         string
	UserAgent  string
}

// LogQuery filters and pages activity log reads. Zero Page and Limit take the defaults.
type LogQuery struct {
	Page   int
	Limit  int
	Action models.Action
	From   *time.Time
	To     *time.Time
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// LogEntry is an activity log entry with its accessor resolved.
type LogEntry struct {
	ID         primitive.ObjectID `json:"id"`
	ShareID    primitive.ObjectID `json:"shareId"`
	AccessedBy models.UserRef     `json:"accessedBy"`
	Action     models.Action      `json:"action"`
	IPAddress  *string            `json:"ipAddress"`
	UserAgent  *string            `json:"userAgent"`
	CreatedAt  time.Time          `json:"createdAt"`
}

type LogPage struct {
	Logs       []LogEntry `json:"logs"`
	Pagination Pagination `json:"pagination"`
}

type ActionBreakdown struct {
	Views     int `json:"views"`
	Downloads int `json:"downloads"`
	Shares    int `json:"share"`
}

type Analytics struct {
	TotalAccess     int             `json:"totalAccess"`
	TotalViews      int             `json:"totalViews"`
	TotalDownloads  int             `json:"totalDownloads"`
	UniqueUsers     int             `json:"uniqueUsers"`
	LastAccess      *time.Time      `json:"lastAccess"`
	ActionBreakdown ActionBreakdown `json:"actionBreakdown"`
}

// ActivityLogService records share events and answers queries over them.
// Authorization of reads is the caller's job.
type ActivityLogService struct {
	logs       repository.ActivityLogs
	identities IdentityProvider
	failClosed bool
	now        func() time.Time
	log        *zap.Logger
}

func NewActivityLogService(logs repository.ActivityLogs, identities IdentityProvider, failClosed bool, log *zap.Logger) *ActivityLogService {
	return &ActivityLogService{logs: logs, identities: identities, failClosed: failClosed, now: time.Now, log: log}
}

func (s *ActivityLogService) newEntry(ev Event) (*models.ActivityLog, error) {
	if ev.ShareID.IsZero() || ev.AccessedBy.IsZero() || ev.Action == "" {
		return nil, apperrors.Validation("shareId, accessedBy, and action are required")
	}
	if !ev.Action.Valid() {
		return nil, apperrors.Validation("unknown action %q", ev.Action)
	}
	return &models.ActivityLog{
		ID:         primitive.NewObjectID(),
		ShareID:    ev.ShareID,
		AccessedBy: ev.AccessedBy,
		Action:     ev.Action,
		IPAddress:  SanitizeIP(ev.IP),
		UserAgent:  SanitizeUserAgent(ev.UserAgent),
		CreatedAt:  s.now(),
	}, nil
}

// RecordEvent appends one entry.
func (s *ActivityLogService) RecordEvent(ctx context.Context, ev Event) (*models.ActivityLog, error) {
	entry, err := s.newEntry(ev)
	if err != nil {
		return nil, err
	}
	if err := s.logs.Insert(ctx, entry); err != nil {
		return nil, apperrors.Service("failed to record activity", err)
	}
	return entry, nil
}

// RecordBatch validates every event before inserting any of them.
func (s *ActivityLogService) RecordBatch(ctx context.Context, events []Event) ([]*models.ActivityLog, error) {
	if len(events) == 0 {
		return nil, apperrors.Validation("events must be a non-empty list")
	}
	entries := make([]*models.ActivityLog, 0, len(events))
	for _, ev := range events {
		entry, err := s.newEntry(ev)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := s.logs.InsertMany(ctx, entries); err != nil {
		return nil, apperrors.Service("failed to record activity", err)
	}
	return entries, nil
}

// Observe records an access event under the configured audit policy. A failed
// write is always logged. It fails the caller only when the service is fail-closed.
func (s *ActivityLogService) Observe(ctx context.Context, ev Event) error {
	if _, err := s.RecordEvent(ctx, ev); err != nil {
		s.log.Error("failed to record activity",
			zap.String("share_id", ev.ShareID.Hex()),
			zap.String("accessed_by", ev.AccessedBy.Hex()),
			zap.String("action", string(ev.Action)),
			zap.Bool("fail_closed", s.failClosed),
			zap.Error(err))
		if s.failClosed {
			return apperrors.Service("failed to record access", err)
		}
	}
	return nil
}

func (s *ActivityLogService) QueryByGrant(ctx context.Context, shareID primitive.ObjectID, q LogQuery) (*LogPage, error) {
	return s.QueryByGrants(ctx, []primitive.ObjectID{shareID}, q)
}

// QueryByGrants pages through the union of entries of several grants.
func (s *ActivityLogService) QueryByGrants(ctx context.Context, shareIDs []primitive.ObjectID, q LogQuery) (*LogPage, error) {
	if q.Action != "" && !q.Action.Valid() {
		return nil, apperrors.Validation("unknown action %q", q.Action)
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, apperrors.Validation("startDate must not be after endDate")
	}
	filter := repository.LogFilter{
		ShareIDs: append([]primitive.ObjectID{}, shareIDs...),
		Action:   q.Action,
		From:     q.From,
		To:       q.To,
	}
	return s.page(ctx, filter, q.Page, q.Limit)
}

// QueryByUser pages through the entries the user produced, newest first.
func (s *ActivityLogService) QueryByUser(ctx context.Context, userID primitive.ObjectID, page, limit int) (*LogPage, error) {
	return s.page(ctx, repository.LogFilter{AccessedBy: &userID}, page, limit)
}

func (s *ActivityLogService) page(ctx context.Context, filter repository.LogFilter, page, limit int) (*LogPage, error) {
	p := normalizePage(page, limit)

	var (
		entries []models.ActivityLog
		total   int64
	)
	err := utils.RunParallel(ctx,
		func(ctx context.Context) (err error) {
			entries, err = s.logs.Find(ctx, filter, p)
			return err
		},
		func(ctx context.Context) (err error) {
			total, err = s.logs.Count(ctx, filter)
			return err
		},
	)
	if err != nil {
		return nil, apperrors.Service("failed to fetch activity logs", err)
	}

	resolved, err := s.resolve(ctx, entries)
	if err != nil {
		return nil, err
	}
	return &LogPage{
		Logs: resolved,
		Pagination: Pagination{
			Page:  p.Page,
			Limit: p.Limit,
			Total: total,
			Pages: int64(math.Ceil(float64(total) / float64(p.Limit))),
		},
	}, nil
}

func normalizePage(page, limit int) repository.Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return repository.Page{Page: page, Limit: limit}
}

func (s *ActivityLogService) resolve(ctx context.Context, entries []models.ActivityLog) ([]LogEntry, error) {
	users, err := s.lookup(ctx, entries)
	if err != nil {
		return nil, err
	}
	out := make([]LogEntry, len(entries))
	for i, e := range entries {
		ref := models.UserRef{ID: e.AccessedBy}
		if u, ok := users[e.AccessedBy]; ok {
			ref = u.Ref()
		}
		out[i] = LogEntry{
			ID:         e.ID,
			ShareID:    e.ShareID,
			AccessedBy: ref,
			Action:     e.Action,
			IPAddress:  e.IPAddress,
			UserAgent:  e.UserAgent,
			CreatedAt:  e.CreatedAt,
		}
	}
	return out, nil
}

func (s *ActivityLogService) lookup(ctx context.Context, entries []models.ActivityLog) (map[primitive.ObjectID]models.User, error) {
	ids := make([]primitive.ObjectID, len(entries))
	for i, e := range entries {
		ids[i] = e.AccessedBy
	}
	users, err := s.identities.LookupUsers(ctx, ids)
	if err != nil {
		return nil, apperrors.Service("failed to resolve users", err)
	}
	return users, nil
}

// AggregateForGrants summarizes every entry of the given grants. No grants, or
// grants without entries, give all-zero analytics.
func (s *ActivityLogService) AggregateForGrants(ctx context.Context, shareIDs []primitive.ObjectID) (*Analytics, error) {
	out := &Analytics{}
	if len(shareIDs) == 0 {
		return out, nil
	}

	entries, err := s.logs.Find(ctx, repository.LogFilter{ShareIDs: append([]primitive.ObjectID{}, shareIDs...)}, repository.Page{})
	if err != nil {
		return nil, apperrors.Service("failed to fetch activity logs", err)
	}

	users := make(map[primitive.ObjectID]struct{})
	for _, e := range entries {
		out.TotalAccess++
		users[e.AccessedBy] = struct{}{}
		switch e.Action {
		case models.ActionView:
			out.ActionBreakdown.Views++
		case models.ActionDownload:
			out.ActionBreakdown.Downloads++
		case models.ActionShare:
			out.ActionBreakdown.Shares++
		}
		if out.LastAccess == nil || e.CreatedAt.After(*out.LastAccess) {
			at := e.CreatedAt
			out.LastAccess = &at
		}
	}
	out.TotalViews = out.ActionBreakdown.Views
	out.TotalDownloads = out.ActionBreakdown.Downloads
	out.UniqueUsers = len(users)
	return out, nil
}

// ExportCSV renders every entry of a grant, newest first.
func (s *ActivityLogService) ExportCSV(ctx context.Context, shareID primitive.ObjectID) ([]byte, error) {
	entries, err := s.logs.Find(ctx, repository.LogFilter{ShareIDs: []primitive.ObjectID{shareID}}, repository.Page{})
	if err != nil {
		return nil, apperrors.Service("failed to fetch activity logs", err)
	}
	users, err := s.lookup(ctx, entries)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, apperrors.Service("failed to write csv", err)
	}
	for _, e := range entries {
		name, email := notAvailable, notAvailable
		if u, ok := users[e.AccessedBy]; ok {
			name, email = orNA(&u.Name), orNA(&u.Email)
		}
		row := []string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			FormatActionName(e.Action),
			csvCell(name),
			csvCell(email),
			csvCell(orNA(e.IPAddress)),
			csvCell(orNA(e.UserAgent)),
		}
		if err := w.Write(row); err != nil {
			return nil, apperrors.Service("failed to write csv", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperrors.Service("failed to write csv", err)
	}
	return buf.Bytes(), nil
}

// csvCell keeps spreadsheet applications from evaluating a cell as a formula.
func csvCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return notAvailable
	}
	return *s
}

// FormatActionName is the human-readable form of an action.
func FormatActionName(a models.Action) string {
	switch a {
	case models.ActionShare:
		return "Shared"
	case models.ActionView:
		return "Viewed"
	case models.ActionDownload:
		return "Downloaded"
	}
	return string(a)
}

// SanitizeIP keeps only characters that appear in IPv4 and IPv6 literals and
// caps the length. Nothing left means nil.
func SanitizeIP(ip string) *string {
	cleaned := ipDisallowed.ReplaceAllString(ip, "")
	if len(cleaned) > maxIPLength {
		cleaned = cleaned[:maxIPLength]
	}
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// SanitizeUserAgent strips angle brackets and caps the length in characters.
func SanitizeUserAgent(ua string) *string {
	cleaned := strings.NewReplacer("<", "", ">", "").Replace(ua)
	if runes := []rune(cleaned); len(runes) > maxUserAgentLength {
		cleaned = string(runes[:maxUserAgentLength])
	}
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
