package agent

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseGoalVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Goal
	}{
		{
			name: "rank influencers",
			raw:  `{"type":"rank_influencers_for_campaign","campaignId":"c1"}`,
			want: Goal{Type: GoalRankInfluencers, CampaignID: "c1"},
		},
		{
			name: "refresh instagram",
			raw:  `{"type":"refresh_influencer_instagram","influencerId":"i1"}`,
			want: Goal{Type: GoalRefreshInstagram, InfluencerID: "i1"},
		},
		{
			name: "log interaction",
			raw:  `{"type":"log_interaction","campaignId":"c1","influencerId":"i1","actorType":"brand","action":"shortlist"}`,
			want: Goal{Type: GoalLogInteraction, CampaignID: "c1", InfluencerID: "i1", ActorType: "brand", Action: "shortlist"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGoal(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseGoal: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseGoalRejectsInvalid(t *testing.T) {
	for _, raw := range []string{
		`{"type":"unknown_goal"}`,
		`{"type":"rank_influencers_for_campaign"}`,
		`{"type":"refresh_influencer_instagram"}`,
		`{"type":"log_interaction","campaignId":"c1","influencerId":"i1","actorType":"robot","action":"view"}`,
		`{"type":"log_interaction","campaignId":"c1","influencerId":"i1","actorType":"brand","action":"poke"}`,
		`not json`,
	} {
		_, err := ParseGoal(json.RawMessage(raw))
		if !errors.Is(err, ErrInvalidGoal) {
			t.Errorf("raw %s: expected ErrInvalidGoal, got %v", raw, err)
		}
	}
}

func TestRunKeyIgnoresInactiveVariantFields(t *testing.T) {
	a, err := ParseGoal(json.RawMessage(`{"type":"rank_influencers_for_campaign","campaignId":"c1"}`))
	if err != nil {
		t.Fatal(err)
	}
	// Extra fields belonging to other variants must not change the key.
	b, err := ParseGoal(json.RawMessage(`{"type":"rank_influencers_for_campaign","campaignId":"c1","influencerId":"i9","action":"view"}`))
	if err != nil {
		t.Fatal(err)
	}
	if a.RunKey() != b.RunKey() {
		t.Errorf("run keys differ: %s vs %s", a.RunKey(), b.RunKey())
	}

	c, _ := ParseGoal(json.RawMessage(`{"type":"rank_influencers_for_campaign","campaignId":"c2"}`))
	if a.RunKey() == c.RunKey() {
		t.Error("distinct campaigns must have distinct run keys")
	}
}
