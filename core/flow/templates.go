package flow

import (
	"fmt"
	"strings"

	"github.com/jobinfo/wabot/core/storage"
)

// User-facing message bodies. Kept together so copy changes never touch
// machine logic.

const (
	msgWrongInputHint = "⚠️ That didn't look right. Let's try again."
	msgFlowFailed     = "❌ Something went wrong and this conversation was closed. Send *menu* to start over."

	msgStorageRetryHint = "😓 We hit a snag saving your details. Please send that again."

	msgAskRecruiterName     = "👋 Welcome! Let's register you as a recruiter.\n\nWhat is your *full name*?"
	msgAskRecruiterCompany  = "What *company* do you hire for?"
	msgAskRecruiterLocation = "Where is the company *located*?"
	msgAskRecruiterEmail    = "What is your *work email*? We'll send a verification code there."
	msgAskRecruiterOTP      = "🔐 We sent a 6-digit verification code. Please type it here."

	msgAskVacancyTitle      = "📝 *Post a New Vacancy*\n\nWhat is the *job title*?"
	msgAskVacancyCompany    = "Which *company* is this vacancy for?"
	msgAskVacancyLocation   = "Where is the job *located*?"
	msgAskVacancyDesc       = "Describe the role in a few lines."
	msgAskVacancySalary     = "What is the *salary range*? (e.g. 15k–20k/month)"
	msgAskVacancyExperience = "How much *experience* is required?"
	msgAskVacancyContact    = "Finally, a *contact number or email* for shortlisted candidates (kept private)."

	msgAskSeekerForm = "📝 *Quick Registration*\n\nFill in your details and upload your CV using the form. It takes less than 2 minutes!"
	msgAskCvUpdate   = "📎 Send your updated CV as a *PDF or CSV* document, or use the update form."

	msgCvBadFormat = "❌ Invalid file format. Please upload a PDF or CSV."
)

func recruiterRegisteredBody(name string) string {
	return fmt.Sprintf(
		"✅ *Registration Complete!*\n\nWelcome aboard, %s.\nSend *post vacancy* any time to publish a job.",
		name,
	)
}

func vacancyPostedBody(vac *storage.Vacancy) string {
	return fmt.Sprintf(
		"✅ *Vacancy Posted Successfully!*\n\n*Job Code:* %s\n*Title:* %s\n*Location:* %s\n\nYour vacancy is under review. You'll be notified once it's approved.",
		vac.JobCode, vac.Title, vac.Location,
	)
}

func adminVacancyAlertBody(vac *storage.Vacancy, recruiter *storage.Recruiter) string {
	return fmt.Sprintf(
		"🔔 *New Vacancy Submitted – Action Required*\n\n*Job Code:* %s\n*Title:* %s\n*Company:* %s\n*Location:* %s\n*Recruiter:* %s (%s)",
		vac.JobCode, vac.Title, orDash(vac.Company), vac.Location, recruiter.Name, recruiter.WaNumber,
	)
}

func vacancyApprovedBody(vac *storage.Vacancy) string {
	return fmt.Sprintf(
		"🎉 *Vacancy Approved!*\n\n*%s* (%s) is now live. Share the job code *%s* with candidates; they can apply right here on WhatsApp.",
		vac.Title, vac.Location, vac.JobCode,
	)
}

func vacancyRejectedBody(vac *storage.Vacancy) string {
	body := fmt.Sprintf(
		"❌ *Vacancy Not Approved*\n\n*%s* (%s) was not approved.",
		vac.Title, vac.JobCode,
	)
	if strings.TrimSpace(vac.RejectionReason) != "" {
		body += "\n*Reason:* " + vac.RejectionReason
	}
	return body + "\n\nYou can edit the details and post it again with *post vacancy*."
}

func seekerRegisteredBody(name string) string {
	return fmt.Sprintf(
		"✅ *Registration Complete!*\n\nWelcome, %s. Your CV is on file. Tap any apply link from our channel to use it.",
		name,
	)
}

func cvUpdatedBody(seeker *storage.Seeker) string {
	return fmt.Sprintf(
		"✅ *CV Updated!*\n\n%s, your new CV replaces the old one for all future applications.",
		seeker.Name,
	)
}

func vacancySummaryLines(vacancies []storage.Vacancy) string {
	lines := []string{"📋 *Your Vacancies:*", ""}
	for _, v := range vacancies {
		emoji := map[storage.VacancyStatus]string{
			storage.VacancyApproved: "✅",
			storage.VacancyPending:  "⏳",
			storage.VacancyRejected: "❌",
		}[v.Status]
		if emoji == "" {
			emoji = "❓"
		}
		lines = append(lines, fmt.Sprintf("%s *%s* (%s) – %s", emoji, v.Title, v.JobCode, v.Status))
	}
	return strings.Join(lines, "\n")
}

var applicationStatusEmoji = map[storage.ApplicationStatus]string{
	storage.ApplicationApplied:     "📨",
	storage.ApplicationShortlisted: "⭐",
	storage.ApplicationRejected:    "❌",
}

func applicationHistoryBody(items []storage.ApplicationItem) string {
	lines := []string{"🗂️ *Your Applications:*", ""}
	for _, it := range items {
		emoji := applicationStatusEmoji[it.Status]
		if emoji == "" {
			emoji = "❓"
		}
		title := it.Title
		if title == "" {
			title = "(vacancy removed)"
		}
		lines = append(lines, fmt.Sprintf("%s *%s* (%s) – %s", emoji, title, it.JobCode, it.Status))
	}
	return strings.Join(lines, "\n")
}

func jobDetailBody(vac *storage.Vacancy) string {
	return fmt.Sprintf(
		"📋 *%s*\n🏢 %s | 📍 %s\n\n%s\n\n💰 %s | 🧰 %s",
		vac.Title, orDash(vac.Company), vac.Location,
		orDash(vac.Description), orDash(vac.SalaryRange), orDash(vac.ExperienceRequired),
	)
}

func applicationConfirmedBody(vac *storage.Vacancy) string {
	return fmt.Sprintf(
		"✅ *Application Submitted!*\n\nYou applied for *%s* (%s). The recruiter will contact you if shortlisted.",
		vac.Title, vac.JobCode,
	)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
