package util

import (
	"testing"
	"time"
)

func TestValidateNotFutureDate(t *testing.T) {
	todayDay := startOfDay(time.Now())

	tests := []struct {
		name    string
		date    time.Time
		wantErr bool
	}{
		{"yesterday should be allowed", todayDay.AddDate(0, 0, -1), false},
		{"today should be allowed", todayDay, false},
		{"later today should be allowed", todayDay.Add(12 * time.Hour), false},
		{"tomorrow should be rejected", todayDay.AddDate(0, 0, 1), true},
		{"far future should be rejected", todayDay.AddDate(1, 0, 0), true},
		{"far past should be allowed", todayDay.AddDate(-20, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNotFutureDate(tt.date)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNotFutureDate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDateLocal(t *testing.T) {
	tests := []struct {
		name    string
		dateStr string
		wantErr bool
	}{
		{"valid date string", "2024-09-03", false},
		{"surrounding spaces", " 2024-09-03 ", false},
		{"invalid date string", "invalid", true},
		{"wrong order", "03-09-2024", true},
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDateLocal(tt.dateStr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDateLocal() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	parsed, err := ParseDateLocal("2024-09-03")
	if err != nil {
		t.Fatalf("ParseDateLocal() failed: %v", err)
	}
	if parsed.Location() != time.Local {
		t.Errorf("ParseDateLocal() location = %v, want %v", parsed.Location(), time.Local)
	}
	if parsed.Day() != 3 || parsed.Hour() != 0 {
		t.Errorf("ParseDateLocal() = %v, want start of 3 September", parsed)
	}
}

func TestStartOfDay(t *testing.T) {
	now := time.Now()
	midnight := startOfDay(now)

	if midnight.Hour() != 0 || midnight.Minute() != 0 || midnight.Second() != 0 {
		t.Errorf("startOfDay() should return 00:00:00")
	}
	if midnight.Year() != now.Year() || midnight.Month() != now.Month() || midnight.Day() != now.Day() {
		t.Errorf("startOfDay() should preserve date")
	}
	if midnight.Location() != time.Local {
		t.Errorf("startOfDay() location = %v, want %v", midnight.Location(), time.Local)
	}
}
