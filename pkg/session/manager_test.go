package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yareviews/internal/orgpagetest"
	"yareviews/pkg/config"
	errs "yareviews/pkg/errors"
	"yareviews/pkg/humanize"
	"yareviews/pkg/logger"
	"yareviews/pkg/models"
)

func testSite() *orgpagetest.Site {
	return orgpagetest.NewSite(map[int64]*orgpagetest.Org{
		123: {
			Name:   "Coffee Point",
			Rating: []string{"4", ",", "7"},
			Count:  "312 оценок",
			Stars:  orgpagetest.FullStars(5),
			Reviews: []orgpagetest.Review{
				{Name: "Anna", Date: "2024-03-01T10:00:00.000Z", Text: "Great coffee", Stars: orgpagetest.FullStars(5)},
				{Name: "Oleg", Date: "2024-02-11T08:30:00.000Z", Text: "Slow service", Stars: orgpagetest.FullStars(3), Reply: "Sorry"},
			},
		},
		456: {
			Name:   "Bakery",
			Rating: []string{"4", ",", "1"},
			Count:  "20 оценок",
			Stars:  orgpagetest.FullStars(4),
			Reviews: []orgpagetest.Review{
				{Name: "Ira", Text: "Fresh bread", Stars: orgpagetest.FullStars(4)},
				{Text: "Anonymous visit", Stars: orgpagetest.FullStars(2)},
				{Name: "Petr", Text: "Good", Stars: orgpagetest.FullStars(5)},
			},
		},
		789: {Name: "Empty Shop", NoRatingBlock: true},
	})
}

func newTestManager(t *testing.T, site *orgpagetest.Site, maxPerSession int) (*Manager, *orgpagetest.Launcher, *logger.TestLogger) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Session.ProfileRoot = t.TempDir()
	cfg.Session.CleanupDelay = 0
	cfg.Session.LaunchBackoff = 0
	cfg.Session.MaxExtractions = maxPerSession
	cfg.Timing.Seed = 42

	launcher := orgpagetest.NewLauncher(site)
	log := logger.NewTestLogger()

	opts := OptionsFromConfig(cfg)
	opts.Launcher = launcher
	opts.Policy = humanize.Instant{}
	opts.Logger = log

	m := New(opts)
	t.Cleanup(func() { _ = m.Close() })
	return m, launcher, log
}

func readCards(page *orgpagetest.Page) int {
	n := 0
	for sel, count := range page.OuterHTMLs {
		if strings.Contains(sel, "aria-posinset") {
			n += count
		}
	}
	return n
}

func TestRunExtractionAll(t *testing.T) {
	m, launcher, log := newTestManager(t, testSite(), 8)

	res := m.RunExtraction(context.Background(), 123, models.ModeAll)
	require.False(t, res.Failed(), res.Error)

	require.NotNil(t, res.CompanyInfo)
	require.NotNil(t, res.CompanyInfo.Name)
	assert.Equal(t, "Coffee Point", *res.CompanyInfo.Name)
	assert.Equal(t, 4.7, res.CompanyInfo.AverageRating)
	assert.Equal(t, 312, res.CompanyInfo.RatingCount)
	assert.Equal(t, 5.0, res.CompanyInfo.StarRating)

	require.Len(t, res.CompanyReviews, 2)
	assert.Equal(t, "Anna", *res.CompanyReviews[0].AuthorName)
	require.NotNil(t, res.CompanyReviews[1].OwnerReply)
	assert.Equal(t, "Sorry", *res.CompanyReviews[1].OwnerReply)

	assert.Equal(t, 1, launcher.Launches())
	assert.Equal(t, 1, m.Uses())
	assert.True(t, log.HasMessage("Extraction completed"))
}

func TestRunExtractionModes(t *testing.T) {
	m, _, _ := newTestManager(t, testSite(), 8)
	ctx := context.Background()

	info := m.RunExtraction(ctx, 123, models.ModeInfo)
	require.False(t, info.Failed(), info.Error)
	assert.NotNil(t, info.CompanyInfo)
	assert.Nil(t, info.CompanyReviews)

	reviews := m.RunExtraction(ctx, 123, models.ModeReviews)
	require.False(t, reviews.Failed(), reviews.Error)
	assert.Nil(t, reviews.CompanyInfo)
	assert.Len(t, reviews.CompanyReviews, 2)
}

func TestRunExtractionMissingAuthor(t *testing.T) {
	m, _, _ := newTestManager(t, testSite(), 8)

	res := m.RunExtraction(context.Background(), 456, models.ModeAll)
	require.False(t, res.Failed(), res.Error)
	require.Len(t, res.CompanyReviews, 3)

	assert.Nil(t, res.CompanyReviews[1].AuthorName)
	assert.Equal(t, "Anonymous visit", *res.CompanyReviews[1].BodyText)
	assert.Equal(t, 2.0, res.CompanyReviews[1].StarRating)
	assert.Equal(t, "Petr", *res.CompanyReviews[2].AuthorName)
}

func TestRunExtractionEmptyOrganisation(t *testing.T) {
	m, _, _ := newTestManager(t, testSite(), 8)

	res := m.RunExtraction(context.Background(), 789, models.ModeAll)
	require.False(t, res.Failed(), res.Error)
	require.NotNil(t, res.CompanyInfo)
	assert.Equal(t, 0.0, res.CompanyInfo.AverageRating)
	assert.Equal(t, 0, res.CompanyInfo.RatingCount)
	assert.NotNil(t, res.CompanyReviews)
	assert.Empty(t, res.CompanyReviews)
}

func TestRunExtractionNotFound(t *testing.T) {
	m, launcher, _ := newTestManager(t, testSite(), 8)

	res := m.RunExtraction(context.Background(), 999, models.ModeAll)
	assert.Equal(t, models.Result{Error: "page not found"}, res)
	assert.Equal(t, 1, launcher.Launches())
	assert.Equal(t, 0, m.Uses())
}

func TestRunExtractionPersistentBlock(t *testing.T) {
	site := testSite()
	site.BlockedVisits[123] = 100
	m, launcher, log := newTestManager(t, site, 8)

	res := m.RunExtraction(context.Background(), 123, models.ModeAll)
	assert.Equal(t, models.Result{Error: "possible block detected"}, res)

	assert.Equal(t, 2, launcher.Launches())
	assert.Equal(t, 2, site.Visits(123))
	assert.True(t, launcher.Sessions[0].Closed())
	for _, s := range launcher.Sessions {
		assert.Zero(t, readCards(s.FakePage()), "reviews must not be read on a blocked page")
	}
	assert.True(t, log.HasMessage("Session rotated"))
}

func TestRunExtractionRecoversAfterRotation(t *testing.T) {
	site := testSite()
	site.BlockedVisits[123] = 1
	m, launcher, _ := newTestManager(t, site, 8)

	res := m.RunExtraction(context.Background(), 123, models.ModeAll)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, "Coffee Point", *res.CompanyInfo.Name)
	assert.Len(t, res.CompanyReviews, 2)
	assert.Equal(t, 2, launcher.Launches())
	assert.Equal(t, 1, m.Uses())
}

func TestRunExtractionTransportFault(t *testing.T) {
	site := testSite()
	site.Fail("Navigate", errs.Transport(errors.New("target crashed")))
	m, launcher, _ := newTestManager(t, site, 8)

	first := m.SessionID()
	assert.Empty(t, first)

	res := m.RunExtraction(context.Background(), 123, models.ModeAll)
	assert.Equal(t, models.Result{Error: "browser error: target crashed"}, res)

	require.Equal(t, 2, launcher.Launches())
	assert.True(t, launcher.Sessions[0].Closed())
	assert.Equal(t, launcher.Last().ID(), m.SessionID())

	site.Fail("Navigate", nil)
	res = m.RunExtraction(context.Background(), 123, models.ModeInfo)
	assert.False(t, res.Failed(), res.Error)
}

func TestRunExtractionUnexpectedError(t *testing.T) {
	site := testSite()
	site.Fail("Attributes", errors.New("boom"))
	m, launcher, _ := newTestManager(t, site, 8)

	res := m.RunExtraction(context.Background(), 123, models.ModeAll)
	require.True(t, res.Failed())
	assert.True(t, strings.HasPrefix(res.Error, "unexpected error: "), res.Error)
	assert.Equal(t, 1, launcher.Launches())
}

func TestRunExtractionRotatesAtThreshold(t *testing.T) {
	m, launcher, log := newTestManager(t, testSite(), 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := m.RunExtraction(ctx, 123, models.ModeInfo)
		require.False(t, res.Failed(), res.Error)
	}

	assert.Equal(t, 2, launcher.Launches())
	assert.True(t, launcher.Sessions[0].Closed())
	assert.False(t, launcher.Sessions[1].Closed())
	assert.Equal(t, 1, m.Uses())

	var reasons []interface{}
	for _, msg := range log.GetMessages() {
		if msg.Message == "Session rotated" {
			reasons = append(reasons, msg.Fields["reason"])
		}
	}
	assert.Equal(t, []interface{}{ReasonThreshold}, reasons)
}

type panickyPolicy struct {
	humanize.Instant
}

func (panickyPolicy) Delay(kind humanize.DelayKind) time.Duration {
	if kind == humanize.Settle {
		panic("settle exploded")
	}
	return 0
}

func TestRunExtractionRecoversPanic(t *testing.T) {
	m, launcher, log := newTestManager(t, testSite(), 8)
	m.opts.Policy = panickyPolicy{}

	res := m.RunExtraction(context.Background(), 123, models.ModeAll)
	assert.Equal(t, models.Result{Error: "unexpected error: settle exploded"}, res)

	require.Equal(t, 1, launcher.Launches())
	assert.True(t, launcher.Sessions[0].Closed())
	assert.Empty(t, m.SessionID())
	assert.Empty(t, m.ProfileDir())
	assert.True(t, log.HasError())
}

func TestRotateReplacesSessionAndProfile(t *testing.T) {
	m, launcher, _ := newTestManager(t, testSite(), 8)
	ctx := context.Background()

	require.NoError(t, m.EnsureSession(ctx))
	oldID, oldDir := m.SessionID(), m.ProfileDir()
	require.DirExists(t, oldDir)
	assert.FileExists(t, filepath.Join(oldDir, "Local State"))

	require.NoError(t, m.Rotate(ctx, ReasonManual))
	assert.NotEqual(t, oldID, m.SessionID())
	assert.NotEqual(t, oldDir, m.ProfileDir())
	assert.NoDirExists(t, oldDir)
	assert.DirExists(t, m.ProfileDir())
	assert.True(t, launcher.Sessions[0].Closed())

	// Launch options carry a fingerprint drawn from the configured pool
	lo := launcher.Launched[1]
	assert.Contains(t, config.DefaultUserAgents, lo.Fingerprint.UserAgent)
	assert.GreaterOrEqual(t, lo.Fingerprint.Width, 1200)
	assert.LessOrEqual(t, lo.Fingerprint.Width, 1920)
	assert.Equal(t, lo.ID, m.SessionID())
}

func TestEnsureSessionIsLazy(t *testing.T) {
	m, launcher, _ := newTestManager(t, testSite(), 8)
	assert.Equal(t, 0, launcher.Launches())

	require.NoError(t, m.EnsureSession(context.Background()))
	require.NoError(t, m.EnsureSession(context.Background()))
	assert.Equal(t, 1, launcher.Launches())
}

func TestLaunchFailureRemovesProfile(t *testing.T) {
	m, launcher, _ := newTestManager(t, testSite(), 8)
	launcher.LaunchErr = errs.Transport(errors.New("chrome not found"))

	res := m.RunExtraction(context.Background(), 123, models.ModeAll)
	assert.True(t, strings.HasPrefix(res.Error, "browser error: "), res.Error)
	assert.Contains(t, res.Error, "chrome not found")

	// every configured attempt is spent once, with no extra relaunch on failure
	assert.Equal(t, m.opts.Session.LaunchAttempts, launcher.Attempts())
	assert.Equal(t, 0, launcher.Launches())
	assert.Empty(t, m.SessionID())

	entries, err := os.ReadDir(m.opts.Session.ProfileRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLaunchRetriesTransientFailure(t *testing.T) {
	m, launcher, log := newTestManager(t, testSite(), 8)
	launcher.LaunchErr = errs.Transport(errors.New("websocket url timeout reached"))
	launcher.FailLaunches = 2

	res := m.RunExtraction(context.Background(), 123, models.ModeInfo)
	require.False(t, res.Failed(), res.Error)

	assert.Equal(t, 3, launcher.Attempts())
	require.Equal(t, 1, launcher.Launches())
	assert.Equal(t, launcher.Last().ID(), m.SessionID())
	assert.DirExists(t, m.ProfileDir())
	assert.Equal(t, 2, log.CountMessages("Browser launch failed, retrying"))
}

func TestLaunchDoesNotRetryUnexpectedErrors(t *testing.T) {
	m, launcher, _ := newTestManager(t, testSite(), 8)
	launcher.LaunchErr = errs.Unexpected(errors.New("profile dir is not writable"))

	res := m.RunExtraction(context.Background(), 123, models.ModeAll)
	assert.Equal(t, "unexpected error: profile dir is not writable", res.Error)
	assert.Equal(t, 1, launcher.Attempts())
}

func TestCloseIsIdempotent(t *testing.T) {
	m, launcher, _ := newTestManager(t, testSite(), 8)
	require.NoError(t, m.EnsureSession(context.Background()))
	dir := m.ProfileDir()

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.NoDirExists(t, dir)
	assert.True(t, launcher.Sessions[0].Closed())
	assert.ErrorIs(t, m.EnsureSession(context.Background()), ErrClosed)
	assert.ErrorIs(t, m.Rotate(context.Background(), ReasonManual), ErrClosed)

	res := m.RunExtraction(context.Background(), 123, models.ModeAll)
	assert.True(t, res.Failed())
}

func TestRunExtractionCancelled(t *testing.T) {
	m, _, _ := newTestManager(t, testSite(), 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := m.RunExtraction(ctx, 123, models.ModeAll)
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, context.Canceled.Error())
}
