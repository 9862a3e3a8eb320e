package notification

import (
	"testing"

	"assistant_server/core/domain"
)

func TestShouldNotify(t *testing.T) {
	filter := NewFilter()

	tests := []struct {
		name string
		msg  domain.Message
		want bool
	}{
		{
			name: "Important always notifies",
			msg:  domain.Message{Category: domain.CategoryImportant, Subject: "FYI", Sender: "a@b.example"},
			want: true,
		},
		{
			name: "Meetings category notifies",
			msg:  domain.Message{Category: domain.CategoryMeetings, Subject: "Sync", Sender: "a@b.example"},
			want: true,
		},
		{
			name: "meeting request flag notifies even in Promotions",
			msg:  domain.Message{Category: domain.CategoryPromotions, IsMeetingRequest: true, Subject: "Webinar", Sender: "promo@shop.example"},
			want: true,
		},
		{
			name: "urgent keyword in a promotional subject notifies",
			msg:  domain.Message{Category: domain.CategoryPromotions, Subject: "URGENT: your coupon expires", Sender: "promo@shop.example"},
			want: true,
		},
		{
			name: "edu sender notifies regardless of category",
			msg:  domain.Message{Category: domain.CategoryNewsletters, Subject: "Campus digest", Sender: "news@state.edu"},
			want: true,
		},
		{
			name: "university in sender name notifies",
			msg:  domain.Message{Category: domain.CategoryPersonal, Subject: "Hello", Sender: "Admissions University Office <info@example.org>"},
			want: true,
		},
		{
			name: "plain promotion is suppressed",
			msg:  domain.Message{Category: domain.CategoryPromotions, Subject: "50% off shoes", Sender: "promo@kamiye.shop"},
			want: false,
		},
		{
			name: "plain newsletter is suppressed",
			msg:  domain.Message{Category: domain.CategoryNewsletters, Subject: "Weekly digest", Sender: "digest@news.example"},
			want: false,
		},
		{
			name: "personal mail without urgency is suppressed",
			msg:  domain.Message{Category: domain.CategoryPersonal, Subject: "Dinner pics", Sender: "friend@gmail.com"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.ShouldNotify(&tt.msg); got != tt.want {
				t.Errorf("ShouldNotify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriorityOf(t *testing.T) {
	filter := NewFilter()

	tests := []struct {
		name string
		msg  domain.Message
		want domain.Priority
	}{
		{
			name: "urgent subject is high even when suppressed category",
			msg:  domain.Message{Category: domain.CategoryPromotions, Subject: "Urgent: sale ends"},
			want: domain.PriorityHigh,
		},
		{
			name: "deadline keyword is high",
			msg:  domain.Message{Category: domain.CategoryPersonal, Subject: "Deadline moved to Friday"},
			want: domain.PriorityHigh,
		},
		{
			name: "Important without urgent words is medium",
			msg:  domain.Message{Category: domain.CategoryImportant, Subject: "Account statement"},
			want: domain.PriorityMedium,
		},
		{
			name: "meeting request flag is medium",
			msg:  domain.Message{Category: domain.CategoryPersonal, IsMeetingRequest: true, Subject: "Coffee?"},
			want: domain.PriorityMedium,
		},
		{
			name: "everything else is low",
			msg:  domain.Message{Category: domain.CategoryNewsletters, Subject: "This week in Go"},
			want: domain.PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.PriorityOf(&tt.msg); got != tt.want {
				t.Errorf("PriorityOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
