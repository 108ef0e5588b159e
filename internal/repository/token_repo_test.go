package repository

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paygate/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return db, mock
}

func TestConsume_WinnerFlipsAndLogs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `tokens` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `usage_logs`")).
		WillReturnResult(sqlmock.NewResult(99, 1))
	mock.ExpectCommit()

	token := &models.Token{ID: 5, ApiID: 7, ProviderID: 3}
	usage := &models.UsageLog{ApiID: 7, ProviderID: 3, RequestID: "req-1"}
	if err := repo.Consume(token, usage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !token.Used || token.UsedAt == nil {
		t.Error("token struct not updated after consume")
	}
	if usage.TokenID != 5 {
		t.Errorf("usage log token id = %d, want 5", usage.TokenID)
	}
	if time.Since(*token.UsedAt) > time.Minute {
		t.Errorf("used_at not set to now: %v", token.UsedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestConsume_LoserGetsConsumedError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	// Zero rows matched: another request already flipped the flag.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `tokens` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	token := &models.Token{ID: 5}
	err := repo.Consume(token, &models.UsageLog{})
	if !errors.Is(err, ErrTokenConsumed) {
		t.Fatalf("err = %v, want ErrTokenConsumed", err)
	}
	if token.Used {
		t.Error("loser must not mutate the token struct")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestConsume_UsageLogFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `tokens` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `usage_logs`")).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.Consume(&models.Token{ID: 5}, &models.UsageLog{})
	if err == nil {
		t.Fatal("expected error from failed usage log insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
