package dispatch

import (
	"strings"
	"time"

	"github.com/jobinfo/wabot/core/conversation"
	"github.com/jobinfo/wabot/core/whatsapp"
)

// Global interrupt vocabulary. These inputs act the same in every flow and
// outside of flows, so they are checked before the active machine sees the
// event.

var cancelWords = map[string]bool{
	"cancel": true,
	"exit":   true,
	"stop":   true,
}

var menuWords = map[string]bool{
	"hi":    true,
	"hello": true,
	"hey":   true,
	"start": true,
	"menu":  true,
	"help":  true,
}

const (
	msgCancelled = "❌ Cancelled. Nothing was saved.\n\nSend *menu* whenever you're ready to start again."
	msgNoFlow    = "There's nothing to cancel right now. Send *menu* to see what I can do."

	msgHowItWorks = "ℹ️ *How JobInfo Works*\n\n" +
		"*Recruiters:* register once, then post vacancies right here in chat. Each approved vacancy gets a shareable job code.\n\n" +
		"*Job seekers:* tap an apply link from our channel, or send a job code like JC:10023. We keep your CV on file so applying takes one tap.\n\n" +
		"Send *cancel* at any point to stop what you're doing."
)

// handleGlobal intercepts cancel and menu requests. It reports whether the
// event was consumed. Cancel terminates the active flow; menu and help answer
// without disturbing it.
func handleGlobal(st *conversation.State, ev whatsapp.Event, now time.Time) (bool, []whatsapp.Message) {
	word := ""
	switch ev.Kind {
	case whatsapp.KindText:
		word = strings.ToLower(strings.TrimSpace(ev.Text))
	case whatsapp.KindButtonReply:
		if ev.ButtonID == "btn_cancel" {
			word = "cancel"
		}
	case whatsapp.KindListReply:
		if ev.ListRowID == "menu_how_it_works" {
			return true, []whatsapp.Message{whatsapp.Text(st.SenderID, msgHowItWorks)}
		}
	}

	switch {
	case cancelWords[word]:
		if !st.InFlow() {
			return true, []whatsapp.Message{whatsapp.Text(st.SenderID, msgNoFlow)}
		}
		st.Cancel(now)
		return true, []whatsapp.Message{whatsapp.Text(st.SenderID, msgCancelled)}

	case menuWords[word]:
		return true, menuMessages(st.SenderID)
	}

	return false, nil
}

// menuMessages renders the main menu.
func menuMessages(to string) []whatsapp.Message {
	return []whatsapp.Message{
		whatsapp.List(to, "👋 Welcome to *JobInfo*! What would you like to do?", "Choose an option",
			whatsapp.ListSection{
				Title: "Recruiters",
				Rows: []whatsapp.ListRow{
					{ID: "menu_post_vacancy", Title: "Post a Vacancy", Description: "Publish a job opening"},
					{ID: "menu_my_vacancies", Title: "My Vacancies", Description: "Review your postings"},
				},
			},
			whatsapp.ListSection{
				Title: "Job Seekers",
				Rows: []whatsapp.ListRow{
					{ID: "menu_update_cv", Title: "Update My CV", Description: "Replace your stored CV"},
					{ID: "menu_view_applications", Title: "My Applications", Description: "Track what you applied for"},
					{ID: "menu_callback", Title: "Request a Callback", Description: "We'll reach out to you"},
					{ID: "menu_how_it_works", Title: "How It Works", Description: "A quick tour"},
				},
			},
		),
	}
}
