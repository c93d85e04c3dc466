package repository

import (
	"strings"
	"testing"
)

// --- Тесты buildAccessLogWhere ---

// TestBuildAccessLogWhere_Empty проверяет пустые фильтры.
func TestBuildAccessLogWhere_Empty(t *testing.T) {
	where, args := buildAccessLogWhere(AccessLogFilters{}, 1)

	if where != "" {
		t.Errorf("where = %q, ожидалась пустая строка", where)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestBuildAccessLogWhere_UserOnly проверяет фильтрацию по пользователю.
func TestBuildAccessLogWhere_UserOnly(t *testing.T) {
	userID := "user-1"
	where, args := buildAccessLogWhere(AccessLogFilters{UserID: &userID}, 1)

	if !strings.Contains(where, "user_id = $1") {
		t.Errorf("where = %q, ожидалось содержание 'user_id = $1'", where)
	}
	if len(args) != 1 {
		t.Errorf("args count = %d, ожидался 1", len(args))
	}
	if args[0] != "user-1" {
		t.Errorf("args[0] = %v, ожидался 'user-1'", args[0])
	}
}

// TestBuildAccessLogWhere_ActionOnly проверяет фильтрацию по действию.
func TestBuildAccessLogWhere_ActionOnly(t *testing.T) {
	action := "upload"
	where, args := buildAccessLogWhere(AccessLogFilters{Action: &action}, 1)

	if !strings.Contains(where, "action = $1") {
		t.Errorf("where = %q, ожидалось содержание 'action = $1'", where)
	}
	if len(args) != 1 {
		t.Errorf("args count = %d, ожидался 1", len(args))
	}
}

// TestBuildAccessLogWhere_MultipleFilters проверяет комбинацию фильтров.
func TestBuildAccessLogWhere_MultipleFilters(t *testing.T) {
	userID := "user-1"
	fileID := "file-1"
	action := "delete"
	where, args := buildAccessLogWhere(AccessLogFilters{
		UserID: &userID,
		FileID: &fileID,
		Action: &action,
	}, 1)

	// Должно быть 3 условия, объединённых AND
	if strings.Count(where, "AND") != 2 {
		t.Errorf("where = %q, ожидалось 2 AND", where)
	}
	if len(args) != 3 {
		t.Errorf("args count = %d, ожидался 3", len(args))
	}
}

// TestBuildAccessLogWhere_StartArgOffset проверяет корректную нумерацию аргументов.
func TestBuildAccessLogWhere_StartArgOffset(t *testing.T) {
	action := "view"
	where, args := buildAccessLogWhere(AccessLogFilters{Action: &action}, 4)

	if !strings.Contains(where, "action = $4") {
		t.Errorf("where = %q, ожидался action = $4", where)
	}
	if len(args) != 1 {
		t.Errorf("args count = %d, ожидался 1", len(args))
	}
}
