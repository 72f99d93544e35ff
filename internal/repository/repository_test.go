package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/repairdesk/internal/database"
	"github.com/iliyamo/repairdesk/internal/model"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Set(s string) {
	t, err := model.ParseTime(s)
	if err != nil {
		panic(err)
	}
	c.t = t
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "data", "service_center.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func newRepos(t *testing.T) (*RequestRepo, *CommentRepo, *testClock) {
	db := setupTestDB(t)
	clock := &testClock{}
	clock.Set("2024-01-01 10:00:00")
	return NewRequestRepo(db, WithClock(clock.Now)), NewCommentRepo(db, WithClock(clock.Now)), clock
}

func fridge(client, phone string) model.NewRequest {
	return model.NewRequest{
		DeviceType:         model.DeviceFridge,
		DeviceModel:        "Samsung RB-100",
		ProblemDescription: "Не морозит",
		ClientName:         client,
		ClientPhone:        phone,
	}
}

func TestRequestRepo_AddRequest(t *testing.T) {
	repo, _, _ := newRepos(t)
	ctx := context.Background()

	t.Run("sets defaults", func(t *testing.T) {
		deadline := "2024-01-05"
		in := fridge("Иванов Иван Иванович", "+7 (999) 123-45-67")
		in.Deadline = &deadline

		id, err := repo.AddRequest(ctx, in)
		require.NoError(t, err)
		assert.Greater(t, id, int64(0))

		got, err := repo.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01 10:00:00", got.CreatedDate)
		require.NotNil(t, got.UpdatedDate)
		assert.Equal(t, got.CreatedDate, *got.UpdatedDate)
		assert.Equal(t, model.StatusNew, got.Status)
		assert.Nil(t, got.MasterName)
		assert.Nil(t, got.CompletionDate)
		require.NotNil(t, got.Deadline)
		assert.Equal(t, "2024-01-05", *got.Deadline)
	})

	t.Run("ids are monotonic", func(t *testing.T) {
		a, err := repo.AddRequest(ctx, fridge("A", "1"))
		require.NoError(t, err)
		b, err := repo.AddRequest(ctx, fridge("B", "2"))
		require.NoError(t, err)
		assert.Greater(t, b, a)
	})
}

func TestRequestRepo_AddRequestFailure(t *testing.T) {
	repo, _, _ := newRepos(t)
	ctx := context.Background()
	require.NoError(t, repo.DB().Close())

	_, err := repo.AddRequest(ctx, fridge("A", "1"))
	require.Error(t, err)
	var se *StorageError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "add request", se.Op)
}

func TestRequestRepo_GetRequestNotFound(t *testing.T) {
	repo, _, _ := newRepos(t)
	_, err := repo.GetRequest(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestRepo_GetAllRequests(t *testing.T) {
	repo, _, clock := newRepos(t)
	ctx := context.Background()

	empty, err := repo.GetAllRequests(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	first, err := repo.AddRequest(ctx, fridge("Первый", "1"))
	require.NoError(t, err)
	clock.Set("2024-01-02 09:00:00")
	second, err := repo.AddRequest(ctx, fridge("Второй", "2"))
	require.NoError(t, err)
	_, err = repo.UpdateRequestStatus(ctx, first, model.StatusInProgress, "")
	require.NoError(t, err)

	all, err := repo.GetAllRequests(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second, all[0].ID)
	assert.Equal(t, first, all[1].ID)

	inProgress, err := repo.GetAllRequests(ctx, model.StatusInProgress)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, first, inProgress[0].ID)
}

func TestRequestRepo_UpdateRequestStatus(t *testing.T) {
	repo, _, clock := newRepos(t)
	ctx := context.Background()

	id, err := repo.AddRequest(ctx, fridge("Сидоров Сидор", "3"))
	require.NoError(t, err)

	t.Run("assigns master", func(t *testing.T) {
		clock.Set("2024-01-01 11:00:00")
		ok, err := repo.UpdateRequestStatus(ctx, id, model.StatusInProgress, "Мастер Иванов")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, got.Status)
		require.NotNil(t, got.MasterName)
		assert.Equal(t, "Мастер Иванов", *got.MasterName)
		assert.Equal(t, "2024-01-01 11:00:00", *got.UpdatedDate)
		assert.Nil(t, got.CompletionDate)
	})

	t.Run("omitted master is kept", func(t *testing.T) {
		_, err := repo.UpdateRequestStatus(ctx, id, model.StatusWaitingForParts, "")
		require.NoError(t, err)
		got, err := repo.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Мастер Иванов", *got.MasterName)
	})

	t.Run("completion stamped and re-stamped", func(t *testing.T) {
		clock.Set("2024-01-02 12:00:00")
		_, err := repo.UpdateRequestStatus(ctx, id, model.StatusReadyForPickup, "")
		require.NoError(t, err)
		got, err := repo.GetRequest(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.CompletionDate)
		assert.Equal(t, "2024-01-02 12:00:00", *got.CompletionDate)

		clock.Set("2024-01-02 15:00:00")
		_, err = repo.UpdateRequestStatus(ctx, id, model.StatusCompleted, "")
		require.NoError(t, err)
		got, err = repo.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-02 15:00:00", *got.CompletionDate)
		assert.GreaterOrEqual(t, *got.CompletionDate, got.CreatedDate)
	})

	t.Run("moving back keeps completion date", func(t *testing.T) {
		clock.Set("2024-01-03 08:00:00")
		_, err := repo.UpdateRequestStatus(ctx, id, model.StatusInProgress, "")
		require.NoError(t, err)
		got, err := repo.GetRequest(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.CompletionDate)
		assert.Equal(t, "2024-01-02 15:00:00", *got.CompletionDate)
		assert.Equal(t, "2024-01-03 08:00:00", *got.UpdatedDate)
	})

	t.Run("unknown id is false without error", func(t *testing.T) {
		ok, err := repo.UpdateRequestStatus(ctx, 9999, model.StatusCompleted, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRequestRepo_ExtendDeadline(t *testing.T) {
	repo, _, clock := newRepos(t)
	ctx := context.Background()

	id, err := repo.AddRequest(ctx, fridge("A", "1"))
	require.NoError(t, err)

	clock.Set("2024-01-04 10:00:00")
	assert.True(t, repo.ExtendDeadline(ctx, id, "2024-01-10"))
	got, err := repo.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", *got.Deadline)
	assert.Equal(t, "2024-01-04 10:00:00", *got.UpdatedDate)

	assert.False(t, repo.ExtendDeadline(ctx, 9999, "2024-01-10"))

	require.NoError(t, repo.DB().Close())
	assert.False(t, repo.ExtendDeadline(ctx, id, "2024-01-11"))
}

func TestRequestRepo_SearchRequests(t *testing.T) {
	repo, _, clock := newRepos(t)
	ctx := context.Background()

	byClient, err := repo.AddRequest(ctx, model.NewRequest{
		DeviceType: model.DeviceTV, DeviceModel: "Sony Bravia", ProblemDescription: "Нет изображения",
		ClientName: "Иванов Пётр", ClientPhone: "+7 (999) 111-22-33",
	})
	require.NoError(t, err)
	clock.Set("2024-01-01 11:00:00")
	byModel, err := repo.AddRequest(ctx, model.NewRequest{
		DeviceType: model.DeviceOther, DeviceModel: "Самоделка Иванов-3000", ProblemDescription: "Искрит",
		ClientName: "Петров Павел", ClientPhone: "+7 (999) 444-55-66",
	})
	require.NoError(t, err)
	clock.Set("2024-01-01 12:00:00")
	_, err = repo.AddRequest(ctx, model.NewRequest{
		DeviceType: model.DeviceFridge, DeviceModel: "Atlant", ProblemDescription: "Шумит",
		ClientName: "Кузнецов Алексей", ClientPhone: "+7 (999) 777-88-99",
	})
	require.NoError(t, err)

	t.Run("or across columns", func(t *testing.T) {
		res, err := repo.SearchRequests(ctx, "Иванов")
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, byModel, res[0].ID)
		assert.Equal(t, byClient, res[1].ID)
	})

	t.Run("by phone", func(t *testing.T) {
		res, err := repo.SearchRequests(ctx, "444-55")
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, byModel, res[0].ID)
	})

	t.Run("ascii case insensitive", func(t *testing.T) {
		res, err := repo.SearchRequests(ctx, "atlant")
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "Atlant", res[0].DeviceModel)
	})

	t.Run("no match", func(t *testing.T) {
		res, err := repo.SearchRequests(ctx, "Zanussi")
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}

func TestRequestRepo_DeleteCascadesComments(t *testing.T) {
	repo, comments, _ := newRepos(t)
	ctx := context.Background()

	id, err := repo.AddRequest(ctx, fridge("A", "1"))
	require.NoError(t, err)
	require.True(t, comments.AddComment(ctx, id, "Заказан компрессор", "компрессор", "master_1"))
	require.True(t, comments.AddComment(ctx, id, "Ждём поставку", "", "master_1"))

	list, err := comments.GetComments(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 2)

	ok, err := repo.DeleteRequest(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err = comments.GetComments(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCommentRepo_AddComment(t *testing.T) {
	repo, comments, clock := newRepos(t)
	ctx := context.Background()

	id, err := repo.AddRequest(ctx, fridge("A", "1"))
	require.NoError(t, err)

	clock.Set("2024-01-01 13:30:00")
	assert.True(t, comments.AddComment(ctx, id, "Диагностика", "термостат", "Мастер Иванов"))

	list, err := comments.GetComments(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Диагностика", list[0].CommentText)
	require.NotNil(t, list[0].PartsOrdered)
	assert.Equal(t, "термостат", *list[0].PartsOrdered)
	assert.Equal(t, "2024-01-01 13:30:00", list[0].AddedDate)
	assert.Equal(t, "Мастер Иванов", list[0].Author)

	assert.False(t, comments.AddComment(ctx, 9999, "orphan", "", "x"), "foreign key must reject unknown request")
}

func TestCommentRepo_PartsTextLength(t *testing.T) {
	repo, comments, _ := newRepos(t)
	ctx := context.Background()

	n, err := comments.PartsTextLength(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	id, err := repo.AddRequest(ctx, fridge("A", "1"))
	require.NoError(t, err)
	require.True(t, comments.AddComment(ctx, id, "c1", "abc", "m"))
	require.True(t, comments.AddComment(ctx, id, "c2", "реле", "m"))

	n, err = comments.PartsTextLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n, "length counts characters, not bytes")
}

func TestRequestRepo_GetRequestStatistics(t *testing.T) {
	repo, _, clock := newRepos(t)
	ctx := context.Background()

	stats, err := repo.GetRequestStatistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRequests)
	assert.Empty(t, stats.StatusCounts)
	assert.Zero(t, stats.AverageCompletionHours)

	a, err := repo.AddRequest(ctx, fridge("A", "1"))
	require.NoError(t, err)
	_, err = repo.AddRequest(ctx, model.NewRequest{
		DeviceType: model.DeviceTV, DeviceModel: "LG", ProblemDescription: "x", ClientName: "B", ClientPhone: "2",
	})
	require.NoError(t, err)
	clock.Set("2024-01-02 15:00:00")
	_, err = repo.UpdateRequestStatus(ctx, a, model.StatusCompleted, "")
	require.NoError(t, err)

	stats, err = repo.GetRequestStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRequests)
	assert.Equal(t, map[string]int{model.StatusNew: 1, model.StatusCompleted: 1}, stats.StatusCounts)
	assert.Equal(t, map[string]int{model.DeviceFridge: 1, model.DeviceTV: 1}, stats.DeviceStatistics)
	assert.Equal(t, 29.0, stats.AverageCompletionHours)
}

func TestRequestRepo_RepairWindowsBounds(t *testing.T) {
	repo, _, clock := newRepos(t)
	ctx := context.Background()

	for _, ts := range []string{"2024-01-01 10:00:00", "2024-01-02 23:59:59", "2024-01-03 00:00:00"} {
		clock.Set(ts)
		_, err := repo.AddRequest(ctx, fridge("A", "1"))
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{"open", "", "", 3},
		{"both", "2024-01-01 00:00:00", "2024-01-02 23:59:59", 2},
		{"from only", "2024-01-02 00:00:00", "", 2},
		{"to only", "", "2024-01-01 23:59:59", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws, err := repo.RepairWindows(ctx, tt.from, tt.to)
			require.NoError(t, err)
			assert.Len(t, ws, tt.want)
		})
	}
}

func TestImportIsIdempotent(t *testing.T) {
	repo, comments, _ := newRepos(t)
	users := NewUserRepo(repo.DB())
	ctx := context.Background()

	completed := "2024-02-03 00:00:00"
	parts := "шланг"
	importOnce := func() (int, error) {
		inserted := 0
		err := RunInTx(ctx, repo.DB(), func(tx *sql.Tx) error {
			ok, err := users.ImportUserTx(ctx, tx, model.Account{ID: 1, Username: "login1", PasswordHash: "h", Role: model.RoleMaster, FullName: "Мастер"})
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
			ok, err = repo.ImportRequestTx(ctx, tx, model.Request{
				ID: 7, CreatedDate: "2024-02-01 00:00:00", DeviceType: model.DeviceStove, DeviceModel: "Gefest",
				ProblemDescription: "Не греет", ClientName: "Клиент", ClientPhone: "+7 (000) 000-00-00",
				Status: model.StatusCompleted, CompletionDate: &completed,
			})
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
			ok, err = comments.ImportCommentTx(ctx, tx, model.Comment{ID: 3, RequestID: 7, CommentText: "ok", PartsOrdered: &parts, Author: "master_1"})
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
			return nil
		})
		return inserted, err
	}

	n, err := importOnce()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = importOnce()
	require.NoError(t, err)
	assert.Zero(t, n)

	total, err := repo.CountRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	list, err := comments.GetComments(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// the auto-id path continues after the imported id
	id, err := repo.AddRequest(ctx, fridge("A", "1"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
}

func TestRunInTxRollsBack(t *testing.T) {
	repo, _, _ := newRepos(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := RunInTx(ctx, repo.DB(), func(tx *sql.Tx) error {
		if _, err := repo.ImportRequestTx(ctx, tx, model.Request{
			ID: 1, CreatedDate: "2024-01-01 00:00:00", DeviceType: "x", DeviceModel: "x",
			ProblemDescription: "x", ClientName: "x", ClientPhone: "x", Status: model.StatusNew,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := repo.CountRequests(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportCommentForeignKey(t *testing.T) {
	repo, comments, _ := newRepos(t)
	ctx := context.Background()

	err := RunInTx(ctx, repo.DB(), func(tx *sql.Tx) error {
		_, err := comments.ImportCommentTx(ctx, tx, model.Comment{ID: 1, RequestID: 404, CommentText: "x", Author: "a"})
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestUserRepo_FindByCredentials(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepo(db)
	ctx := context.Background()

	require.NoError(t, RunInTx(ctx, db, func(tx *sql.Tx) error {
		_, err := users.ImportUserTx(ctx, tx, model.Account{ID: 1, Username: "kasova", PasswordHash: "hash1", Role: model.RoleManager, FullName: "Касоева Анна"})
		return err
	}))

	id, err := users.FindByCredentials(ctx, "kasova", "hash1")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, model.Identity{Username: "kasova", Role: model.RoleManager, FullName: "Касоева Анна"}, *id)

	id, err = users.FindByCredentials(ctx, "kasova", "wrong")
	require.NoError(t, err)
	assert.Nil(t, id)

	acc, err := users.GetByUsername(ctx, "kasova")
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.ID)

	_, err = users.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
