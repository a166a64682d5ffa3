package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/push"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/lostreports"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/matches"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/petimages"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/sightings"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/users"
	"github.com/dmitrijs2005/petmatch/internal/server/similarity"
	"github.com/stretchr/testify/require"
)

// -------- in-memory repositories --------

type fakeUsersRepo struct {
	users.Repository
	m       *fakeRepoManager
	cleared []string
}

func (f *fakeUsersRepo) Ensure(ctx context.Context, u *models.User) (*models.User, error) {
	if existing, ok := f.m.users[u.ID]; ok {
		return existing, nil
	}
	cp := *u
	f.m.users[u.ID] = &cp
	return &cp, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	u, ok := f.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.Phone != nil && *upd.Phone != "" {
		for _, other := range f.m.users {
			if other.ID != id && other.Phone != nil && *other.Phone == *upd.Phone {
				return nil, fmt.Errorf("%w: users_phone_number_key", common.ErrorConflict)
			}
		}
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Phone != nil {
		if *upd.Phone == "" {
			u.Phone = nil
		} else {
			p := *upd.Phone
			u.Phone = &p
		}
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) SetPushToken(ctx context.Context, id string, token *string) error {
	u, ok := f.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PushToken = token
	return nil
}

func (f *fakeUsersRepo) ClearPushToken(ctx context.Context, id string, token string) (bool, error) {
	f.cleared = append(f.cleared, id)
	u, ok := f.m.users[id]
	if !ok || u.PushToken == nil || *u.PushToken != token {
		return false, nil
	}
	u.PushToken = nil
	return true, nil
}

type fakeReportsRepo struct {
	lostreports.Repository
	m *fakeRepoManager

	getErr map[string]error
}

func (f *fakeReportsRepo) Create(ctx context.Context, r *models.LostReport) (*models.LostReport, error) {
	cp := *r
	cp.ID = f.m.nextID("report")
	cp.CreatedAt = f.m.now
	cp.UpdatedAt = f.m.now
	f.m.reports[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeReportsRepo) GetByID(ctx context.Context, id string) (*models.LostReport, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	r, ok := f.m.reports[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReportsRepo) List(ctx context.Context, filter models.ListFilter) ([]*models.LostReport, int, error) {
	f.m.lastFilter = filter
	var out []*models.LostReport
	for _, r := range f.m.reports {
		if filter.Status != "" && string(r.Status) != filter.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (f *fakeReportsRepo) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error {
	r, ok := f.m.reports[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.Status = status
	return nil
}

type fakeSightingsRepo struct {
	sightings.Repository
	m *fakeRepoManager

	createErr error
}

func (f *fakeSightingsRepo) Create(ctx context.Context, s *models.Sighting) (*models.Sighting, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	cp := *s
	cp.ID = f.m.nextID("sighting")
	cp.CreatedAt = f.m.now
	cp.UpdatedAt = f.m.now
	f.m.sightings[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeSightingsRepo) GetByID(ctx context.Context, id string) (*models.Sighting, error) {
	s, ok := f.m.sightings[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSightingsRepo) List(ctx context.Context, filter models.ListFilter) ([]*models.Sighting, int, error) {
	f.m.lastFilter = filter
	var out []*models.Sighting
	for _, s := range f.m.sightings {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeSightingsRepo) UpdateStatus(ctx context.Context, id string, status models.SightingStatus) error {
	s, ok := f.m.sightings[id]
	if !ok {
		return common.ErrorNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeSightingsRepo) Update(ctx context.Context, id string, upd models.SightingUpdate) error {
	s, ok := f.m.sightings[id]
	if !ok {
		return common.ErrorNotFound
	}
	if upd.Description != nil {
		s.Description = *upd.Description
	}
	if upd.LocationText != nil {
		s.LocationText = *upd.LocationText
	}
	if upd.Location != nil {
		p := *upd.Location
		s.Location = &p
	}
	if upd.Status != nil {
		s.Status = *upd.Status
	}
	return nil
}

// Delete cascades to images and matches like the foreign keys do.
func (f *fakeSightingsRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.m.sightings[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.m.sightings, id)
	kept := f.m.images[:0]
	for _, img := range f.m.images {
		if img.SightingID == nil || *img.SightingID != id {
			kept = append(kept, img)
		}
	}
	f.m.images = kept
	for mid, mt := range f.m.matches {
		if mt.SightingID == id {
			delete(f.m.matches, mid)
		}
	}
	return nil
}

type fakeImagesRepo struct {
	petimages.Repository
	m *fakeRepoManager

	createErr error
}

func (f *fakeImagesRepo) Create(ctx context.Context, img *models.PetImage) (*models.PetImage, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.m.images {
		if existing.VectorID == img.VectorID {
			return nil, fmt.Errorf("%w: pet_images_vector_id_key", common.ErrorConflict)
		}
	}
	cp := *img
	cp.ID = f.m.nextID("image")
	cp.CreatedAt = f.m.now
	f.m.images = append(f.m.images, &cp)
	out := cp
	return &out, nil
}

func (f *fakeImagesRepo) GetByVectorID(ctx context.Context, vectorID string) (*models.PetImage, error) {
	for _, img := range f.m.images {
		if img.VectorID == vectorID {
			cp := *img
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeImagesRepo) ListByReport(ctx context.Context, reportID string) ([]*models.PetImage, error) {
	var out []*models.PetImage
	for _, img := range f.m.images {
		if img.ReportID != nil && *img.ReportID == reportID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (f *fakeImagesRepo) ListBySighting(ctx context.Context, sightingID string) ([]*models.PetImage, error) {
	var out []*models.PetImage
	for _, img := range f.m.images {
		if img.SightingID != nil && *img.SightingID == sightingID {
			out = append(out, img)
		}
	}
	return out, nil
}

type fakeMatchesRepo struct {
	matches.Repository
	m *fakeRepoManager

	createErr map[string]error
	locked    []string
	// onLock runs when a row lock is granted, before the row is read.
	onLock func(id string)
}

func (f *fakeMatchesRepo) Create(ctx context.Context, reportID, sightingID string, score float64) (*models.Match, error) {
	if err := f.createErr[reportID]; err != nil {
		return nil, err
	}
	if err := models.ValidateScore(score); err != nil {
		return nil, err
	}
	for _, existing := range f.m.matches {
		if existing.ReportID == reportID && existing.SightingID == sightingID {
			return nil, fmt.Errorf("%w: matches_report_id_sighting_id_key", common.ErrorConflict)
		}
	}
	mt := &models.Match{
		ID:         f.m.nextID("match"),
		ReportID:   reportID,
		SightingID: sightingID,
		Score:      score,
		Status:     models.MatchPending,
		CreatedAt:  f.m.now,
		UpdatedAt:  f.m.now,
	}
	f.m.matches[mt.ID] = mt
	cp := *mt
	return &cp, nil
}

func (f *fakeMatchesRepo) GetByID(ctx context.Context, id string) (*models.Match, error) {
	mt, ok := f.m.matches[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *mt
	return &cp, nil
}

func (f *fakeMatchesRepo) GetDetails(ctx context.Context, id string) (*models.MatchDetails, error) {
	mt, ok := f.m.matches[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return f.m.details(mt), nil
}

func (f *fakeMatchesRepo) GetDetailsForUpdate(ctx context.Context, id string) (*models.MatchDetails, error) {
	f.locked = append(f.locked, id)
	if f.onLock != nil {
		f.onLock(id)
	}
	return f.GetDetails(ctx, id)
}

func (f *fakeMatchesRepo) Update(ctx context.Context, id string, upd models.MatchUpdate) (*models.Match, error) {
	mt, ok := f.m.matches[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.Score != nil {
		mt.Score = *upd.Score
	}
	if upd.Status != nil {
		mt.Status = *upd.Status
	}
	cp := *mt
	return &cp, nil
}

func (f *fakeMatchesRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.m.matches[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.m.matches, id)
	return nil
}

func (f *fakeMatchesRepo) ListByOwner(ctx context.Context, ownerID, status string, limit, offset int) ([]*models.MatchDetails, int, error) {
	var out []*models.MatchDetails
	for _, mt := range f.m.matches {
		d := f.m.details(mt)
		if d.OwnerID != ownerID || (status != "" && string(d.Status) != status) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, len(out), nil
}

// fakeRepoManager keeps every table in memory and hands out repositories
// over it, whatever DBTX they are given.
type fakeRepoManager struct {
	repomanager.RepositoryManager

	now       time.Time
	seq       int
	users     map[string]*models.User
	reports   map[string]*models.LostReport
	sightings map[string]*models.Sighting
	images    []*models.PetImage
	matches   map[string]*models.Match

	lastFilter models.ListFilter

	u  *fakeUsersRepo
	r  *fakeReportsRepo
	s  *fakeSightingsRepo
	i  *fakeImagesRepo
	mt *fakeMatchesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	m := &fakeRepoManager{
		now:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		users:     map[string]*models.User{},
		reports:   map[string]*models.LostReport{},
		sightings: map[string]*models.Sighting{},
		matches:   map[string]*models.Match{},
	}
	m.u = &fakeUsersRepo{m: m}
	m.r = &fakeReportsRepo{m: m, getErr: map[string]error{}}
	m.s = &fakeSightingsRepo{m: m}
	m.i = &fakeImagesRepo{m: m}
	m.mt = &fakeMatchesRepo{m: m, createErr: map[string]error{}}
	return m
}

func (m *fakeRepoManager) nextID(kind string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", kind, m.seq)
}

func (m *fakeRepoManager) details(mt *models.Match) *models.MatchDetails {
	d := &models.MatchDetails{Match: *mt}
	if r, ok := m.reports[mt.ReportID]; ok {
		d.PetName, d.Species, d.Breed = r.PetName, r.Species, r.Breed
		d.OwnerID, d.ReportStatus, d.LostDate = r.OwnerID, r.Status, r.LostDate
		if u, ok := m.users[r.OwnerID]; ok {
			d.OwnerPhone = u.Phone
		}
	}
	if s, ok := m.sightings[mt.SightingID]; ok {
		d.ReporterID, d.SightingDate = s.ReporterID, s.SightingDate
		d.LocationText, d.SightingStatus = s.LocationText, s.Status
	}
	return d
}

func (m *fakeRepoManager) addUser(id string, token *string) *models.User {
	u := &models.User{ID: id, Email: id + "@example.com", FullName: strings.ToUpper(id[:1]) + id[1:], PushToken: token}
	m.users[id] = u
	return u
}

func (m *fakeRepoManager) addReport(id, owner, petName string, status models.ReportStatus) *models.LostReport {
	r := &models.LostReport{
		ID:       id,
		OwnerID:  owner,
		PetName:  petName,
		Species:  "dog",
		Status:   status,
		LostDate: m.now.AddDate(0, 0, -10),
	}
	m.reports[id] = r
	return r
}

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) LostReports(dbx.DBTX) lostreports.Repository { return m.r }
func (m *fakeRepoManager) Sightings(dbx.DBTX) sightings.Repository     { return m.s }
func (m *fakeRepoManager) PetImages(dbx.DBTX) petimages.Repository     { return m.i }
func (m *fakeRepoManager) Matches(dbx.DBTX) matches.Repository         { return m.mt }

// -------- collaborators --------

type fakeStore struct {
	objects   map[string][]byte
	uploadErr error
	deleteErr error
	deleted   []string
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

const fakeStoreBase = "http://s3.test/pet-images/"

func (f *fakeStore) Upload(ctx context.Context, data []byte, key, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.objects[key] = data
	return fakeStoreBase + key, nil
}

func (f *fakeStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, common.NewExternalServiceError("s3", "download", common.ErrorNotFound)
	}
	return data, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, fakeStoreBase) {
		return "", false
	}
	return strings.TrimPrefix(url, fakeStoreBase), true
}

type registerCall struct {
	SubjectID string
	EventDate time.Time
}

type fakeIndex struct {
	registerErr error
	duplicateOf string
	registered  []registerCall

	candidates []similarity.Candidate
	searchErr  error
	queries    []similarity.Query

	deleted   []string
	deleteErr error
}

func (f *fakeIndex) Register(ctx context.Context, subjectID string, eventDate time.Time, image []byte) (*similarity.Registration, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, registerCall{SubjectID: subjectID, EventDate: eventDate})
	if f.duplicateOf != "" {
		return &similarity.Registration{VectorID: f.duplicateOf, SubjectID: subjectID, Duplicate: true}, nil
	}
	return &similarity.Registration{VectorID: fmt.Sprintf("vec-%d", len(f.registered)), SubjectID: subjectID}, nil
}

func (f *fakeIndex) Search(ctx context.Context, image []byte, q similarity.Query) ([]similarity.Candidate, error) {
	f.queries = append(f.queries, q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.candidates, nil
}

func (f *fakeIndex) Delete(ctx context.Context, vectorID string) error {
	f.deleted = append(f.deleted, vectorID)
	return f.deleteErr
}

type notifyCall struct {
	UserID  string
	MatchID string
	Score   float64
	PetName string
	Phone   *string
}

type fakeNotifier struct {
	mu        sync.Mutex
	matched   []notifyCall
	confirmed []notifyCall
	delivery  models.Delivery
}

func (f *fakeNotifier) NotifyMatch(ctx context.Context, ownerID, matchID string, score float64, petName string) models.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matched = append(f.matched, notifyCall{UserID: ownerID, MatchID: matchID, Score: score, PetName: petName})
	return f.delivery
}

func (f *fakeNotifier) NotifyMatchConfirmed(ctx context.Context, reporterID, matchID, petName string, ownerPhone *string) models.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, notifyCall{UserID: reporterID, MatchID: matchID, PetName: petName, Phone: ownerPhone})
	return f.delivery
}

type pushCall struct {
	Token, Title, Body string
	Data               map[string]any
}

type fakeGateway struct {
	calls  []pushCall
	result push.Result
	err    error
}

func (f *fakeGateway) Send(ctx context.Context, token, title, body string, data map[string]any) (push.Result, error) {
	f.calls = append(f.calls, pushCall{Token: token, Title: title, Body: body, Data: data})
	return f.result, f.err
}

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func strPtr(s string) *string { return &s }

var testLog logging.Logger = logging.Nop{}
