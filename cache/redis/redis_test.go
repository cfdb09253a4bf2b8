package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"

	cacheredis "github.com/huhn511/arche/cache/redis"
)

func TestGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rc := cacheredis.NewFromClient(db)
	defer rc.Close()

	mock.ExpectGet("arche:en:greeting").SetVal("Hello")

	val, found, err := rc.Get(context.Background(), "arche:en:greeting")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("Hello"), val)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rc := cacheredis.NewFromClient(db)
	defer rc.Close()

	mock.ExpectGet("arche:en:absent").RedisNil()

	val, found, err := rc.Get(context.Background(), "arche:en:absent")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, val)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetWithTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rc := cacheredis.NewFromClient(db)
	defer rc.Close()

	mock.ExpectSet("arche:sw:greeting", []byte("Jambo"), 5*time.Minute).SetVal("OK")

	err := rc.Set(context.Background(), "arche:sw:greeting", []byte("Jambo"), 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rc := cacheredis.NewFromClient(db)
	defer rc.Close()

	mock.ExpectDel("arche:en:greeting").SetVal(1)

	err := rc.Delete(context.Background(), "arche:en:greeting")
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePrefix(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rc := cacheredis.NewFromClient(db)
	defer rc.Close()

	mock.ExpectScan(0, "arche:sw:*", 100).SetVal([]string{"arche:sw:greeting", "arche:sw:farewell"}, 0)
	mock.ExpectDel("arche:sw:greeting").SetVal(1)
	mock.ExpectDel("arche:sw:farewell").SetVal(1)

	err := rc.DeletePrefix(context.Background(), "arche:sw:")
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlush(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rc := cacheredis.NewFromClient(db)
	defer rc.Close()

	mock.ExpectFlushDB().SetVal("OK")

	require.NoError(t, rc.Flush(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
