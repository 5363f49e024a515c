package notify

import (
	"strings"
	"testing"

	"github.com/aluiziolira/go-price-tracker/models"
)

func TestNewSMTPNotifierValidation(t *testing.T) {
	cases := []struct {
		name           string
		host, port, to string
		wantErr        bool
	}{
		{"complete", "mail.example.com", "587", "alerts@example.com", false},
		{"missing host", "", "587", "alerts@example.com", true},
		{"missing port", "mail.example.com", "", "alerts@example.com", true},
		{"missing recipient", "mail.example.com", "587", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSMTPNotifier(tc.host, tc.port, "user", "pass", tc.to)
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewSMTPNotifier() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSMTPMessage(t *testing.T) {
	n, err := NewSMTPNotifier("mail.example.com", "587", "tracker@example.com", "pass", "alerts@example.com")
	if err != nil {
		t.Fatalf("NewSMTPNotifier() error = %v", err)
	}

	target := 800.0
	product := &models.Product{
		Name:        "Widget",
		URL:         "https://shop.example.com/widget",
		Currency:    "INR",
		TargetPrice: &target,
	}

	msg := string(n.message(product, 799))

	for _, want := range []string{
		"From: tracker@example.com",
		"To: alerts@example.com",
		"Subject: Price drop: Widget",
		"799.00 INR",
		"target 800.00",
		"https://shop.example.com/widget",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
