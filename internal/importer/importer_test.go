package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/repairdesk/internal/analytics"
	"github.com/iliyamo/repairdesk/internal/cache"
	"github.com/iliyamo/repairdesk/internal/config"
	"github.com/iliyamo/repairdesk/internal/database"
	"github.com/iliyamo/repairdesk/internal/model"
	"github.com/iliyamo/repairdesk/internal/repository"
	"github.com/iliyamo/repairdesk/internal/utils"
)

const (
	usersCSV = "userID;fio;phone;login;password;type\n" +
		"1;Широков Василий Матвеевич;89210563128;login1;pass1;Менеджер\n" +
		"2;Кудрявцева Ева Ивановна;89535078985;login2;pass2;Мастер\n" +
		"7;Ильина Тамара Даниловна;89219654320;login7;pass7;Заказчик\n" +
		"8;Гусев Олег;89001112233;login8;pass8;Стажёр\n"

	requestsCSV = "requestID;startDate;homeTechType;homeTechModel;problemDescryption;requestStatus;completionDate;repairParts;masterID;clientID\n" +
		"1;2023-06-06;Фен;Ладомир ТА112 белый;Перестал работать;В процессе ремонта;null;;2;7\n" +
		"2;2023-05-05;Тостер;Redmond RT-437 черный;Перестал работать;Готова к выдаче;2023-05-10;;2;99\n" +
		"3;2022-07-07;Холодильник;Indesit DS 316 W белый;Не морозит;Новая заявка;null;;;7\n"

	commentsCSV = "commentID;message;masterID;requestID\n" +
		"1;Интересная поломка;2;1\n" +
		"2;Очень странно, будем разбираться!;2;2\n" +
		"3;Комментарий к несуществующей заявке;2;42\n"
)

type env struct {
	im       *Importer
	requests *repository.RequestRepo
	comments *repository.CommentRepo
	users    *repository.UserRepo
}

func setup(t *testing.T, opts ...Option) env {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "sc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	clock := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	e := env{
		requests: repository.NewRequestRepo(db, repository.WithClock(clock)),
		comments: repository.NewCommentRepo(db, repository.WithClock(clock)),
		users:    repository.NewUserRepo(db),
	}
	e.im = New(db, e.requests, e.comments, e.users, "salt", opts...)
	return e
}

func writeSeed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		UsersFile:    usersCSV,
		RequestsFile: requestsCSV,
		CommentsFile: commentsCSV,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestImportDir(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	dir := writeSeed(t)

	res, err := e.im.ImportDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Result{Users: 4, Requests: 3, Comments: 2, Skipped: 1}, res)

	t.Run("roles and password hashes", func(t *testing.T) {
		a, err := e.users.GetByUsername(ctx, "login1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), a.ID)
		assert.Equal(t, model.RoleManager, a.Role)

		who, err := e.users.FindByCredentials(ctx, "login2", utils.HashPassword("pass2", "salt"))
		require.NoError(t, err)
		require.NotNil(t, who)
		assert.Equal(t, model.RoleMaster, who.Role)

		a, err = e.users.GetByUsername(ctx, "login8")
		require.NoError(t, err)
		assert.Equal(t, model.RoleClient, a.Role, "unknown role falls back to client")
	})

	t.Run("requests", func(t *testing.T) {
		r1, err := e.requests.GetRequest(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "2023-06-06 00:00:00", r1.CreatedDate)
		assert.Equal(t, "Ильина Тамара Даниловна", r1.ClientName)
		assert.Equal(t, PlaceholderPhone, r1.ClientPhone)
		assert.Equal(t, "В процессе ремонта", r1.Status)
		assert.Nil(t, r1.CompletionDate)
		require.NotNil(t, r1.MasterName)
		assert.Equal(t, "Кудрявцева Ева Ивановна", *r1.MasterName)
		require.NotNil(t, r1.UpdatedDate)
		assert.Equal(t, "2024-03-01 12:00:00", *r1.UpdatedDate)

		r2, err := e.requests.GetRequest(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, UnknownClient, r2.ClientName)
		require.NotNil(t, r2.CompletionDate)
		assert.Equal(t, "2023-05-10 00:00:00", *r2.CompletionDate)

		r3, err := e.requests.GetRequest(ctx, 3)
		require.NoError(t, err)
		assert.Nil(t, r3.MasterName)
	})

	t.Run("comments", func(t *testing.T) {
		cs, err := e.comments.GetComments(ctx, 2)
		require.NoError(t, err)
		require.Len(t, cs, 1)
		assert.Equal(t, int64(2), cs[0].ID)
		assert.Equal(t, "master_2", cs[0].Author)
		assert.Equal(t, "2024-03-01 12:00:00", cs[0].AddedDate)
		assert.Nil(t, cs[0].PartsOrdered)
	})

	t.Run("rerun changes nothing", func(t *testing.T) {
		res, err := e.im.ImportDir(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, Result{Skipped: 1}, res)

		all, err := e.requests.GetAllRequests(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("interactive ids continue after imported ones", func(t *testing.T) {
		id, err := e.requests.AddRequest(ctx, model.NewRequest{
			DeviceType: "Фен", DeviceModel: "X", ProblemDescription: "Y", ClientName: "Z", ClientPhone: "P",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), id)
	})
}

func TestImportDirMissingFiles(t *testing.T) {
	e := setup(t)
	res, err := e.im.ImportDir(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestImportRequestsRollsBackOnBadRow(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	body := "requestID;startDate;homeTechType;homeTechModel;problemDescryption;requestStatus;completionDate;repairParts;masterID;clientID\n" +
		"1;2023-06-06;Фен;A;B;Новая;null;;;\n" +
		"two;2023-06-06;Фен;A;B;Новая;null;;;\n"

	_, err := e.im.ImportRequests(ctx, strings.NewReader(body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	all, err := e.requests.GetAllRequests(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportMissingColumn(t *testing.T) {
	e := setup(t)
	_, err := e.im.ImportUsers(context.Background(), strings.NewReader("userID;fio\n1;A\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"login"`)
}

func TestImportEmptyFile(t *testing.T) {
	e := setup(t)
	n, err := e.im.ImportUsers(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportInvalidatesAnalyticsCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	c := cache.New(rdb, config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "test"})
	require.NotNil(t, c)

	e := setup(t, WithCache(c))
	engine := analytics.NewEngine(e.requests, e.comments, analytics.WithCache(c))
	assert.Empty(t, engine.StatusDistribution(ctx))

	body := "requestID;startDate;homeTechType;homeTechModel;problemDescryption;requestStatus;completionDate;repairParts;masterID;clientID\n" +
		"1;2023-06-06;Фен;A;B;Завершена;2023-06-07;;;\n"
	n, err := e.im.ImportRequests(ctx, strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	assert.Equal(t, []analytics.StatusShare{
		{Status: model.StatusCompleted, Count: 1, Percentage: 100},
	}, engine.StatusDistribution(ctx))
	assert.Equal(t, 24.0, engine.AverageRepairTime(ctx))

	// A rerun inserts nothing and keeps the cached results.
	gen, err := mr.Get("test:gen")
	require.NoError(t, err)
	_, err = e.im.ImportRequests(ctx, strings.NewReader(body))
	require.NoError(t, err)
	after, err := mr.Get("test:gen")
	require.NoError(t, err)
	assert.Equal(t, gen, after)
}
