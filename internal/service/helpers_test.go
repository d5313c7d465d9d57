package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/campuscode-api/internal/models"
	"github.com/noah-isme/campuscode-api/pkg/execution"
)

func openLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Problem{}, &models.TestCase{}, &models.Submission{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, college string, xp int64) models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@campus.test",
		Role:     models.RoleStudent,
		College:  college,
		XP:       xp,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedProblem(t *testing.T, db *gorm.DB, points int64, cases ...models.TestCase) models.Problem {
	t.Helper()
	problem := models.Problem{
		Title:        "Double It",
		Difficulty:   models.DifficultyEasy,
		Points:       points,
		Statement:    "Print twice the input.",
		SampleInput:  "2\n",
		SampleOutput: "4\n",
	}
	require.NoError(t, db.Omit("TestCases").Create(&problem).Error)
	for i := range cases {
		cases[i].ProblemID = problem.ID
		if cases[i].Position == 0 {
			cases[i].Position = i + 1
		}
		require.NoError(t, db.Create(&cases[i]).Error)
	}
	return problem
}

type scriptedStep struct {
	result execution.Result
	err    error
}

// scriptedExecutor answers by stdin lookup, falling back to doubling integers.
type scriptedExecutor struct {
	mu      sync.Mutex
	byStdin map[string]scriptedStep
	calls   []execution.Request
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{byStdin: map[string]scriptedStep{}}
}

func (e *scriptedExecutor) on(stdin string, result execution.Result, err error) *scriptedExecutor {
	e.byStdin[stdin] = scriptedStep{result: result, err: err}
	return e
}

func (e *scriptedExecutor) Execute(_ context.Context, req execution.Request) (execution.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, req)

	if step, ok := e.byStdin[req.Stdin]; ok {
		return step.result, step.err
	}

	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(req.Stdin), "%d", &n); err != nil {
		return execution.Result{Stage: execution.StageRun, ExitCode: 1, Stderr: "ValueError"}, nil
	}
	return execution.Result{Stage: execution.StageRun, Stdout: fmt.Sprintf("%d\n", n*2)}, nil
}

func (e *scriptedExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type recordingPublisher struct {
	events []LeaderboardEvent
}

func (p *recordingPublisher) PublishLeaderboardUpdate(_ context.Context, event LeaderboardEvent) error {
	p.events = append(p.events, event)
	return nil
}
