package toolkit

import (
	"errors"
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{expr: "1+2*3", want: "7"},
		{expr: "10/4", want: "2.5"},
		{expr: "-3+5", want: "2"},
		{expr: "2*-3", want: "-6"},
		{expr: "--4", want: "4"},
		{expr: "1.50*2", want: "3"},
		{expr: "100 - 25 - 25", want: "50"},
		{expr: "12abc+3", want: "15"},
		{expr: ".5+.25", want: "0.75"},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			v, err := Evaluate(tc.expr)
			if err != nil {
				t.Fatalf("Evaluate(%q) error = %v", tc.expr, err)
			}
			if got := FormatResult(v); got != tc.want {
				t.Fatalf("Evaluate(%q) = %s, want %s", tc.expr, got, tc.want)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		expr string
		want error
	}{
		{expr: "", want: ErrSyntax},
		{expr: "abc", want: ErrSyntax},
		{expr: "1+", want: ErrSyntax},
		{expr: "1..2", want: ErrSyntax},
		{expr: "*3", want: ErrSyntax},
		{expr: "5/0", want: ErrDivisionByZero},
		{expr: "(1+2)", want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			_, err := Evaluate(tc.expr)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Evaluate(%q) error = %v, want nil", tc.expr, err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("Evaluate(%q) error = %v, want %v", tc.expr, err, tc.want)
			}
		})
	}
}

func TestCalculateRendersErr(t *testing.T) {
	if got := Calculate("7/0"); got != "Err" {
		t.Fatalf("Calculate(7/0) = %q, want Err", got)
	}
	if got := Calculate("6*7"); got != "42" {
		t.Fatalf("Calculate(6*7) = %q, want 42", got)
	}
}

func TestCountdownTo(t *testing.T) {
	exam := time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want Countdown
	}{
		{name: "days and hours", now: exam.Add(-(3*24*time.Hour + 5*time.Hour + 30*time.Minute)), want: Countdown{Days: 3, Hours: 5}},
		{name: "under an hour", now: exam.Add(-59 * time.Minute), want: Countdown{}},
		{name: "passed", now: exam.Add(time.Hour), want: Countdown{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CountdownTo(exam, tc.now); got != tc.want {
				t.Fatalf("CountdownTo() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
