package agent

import (
	"fmt"
	"strings"

	"github.com/chris/tasky/internal/nlu"
)

// messages is the reply vocabulary of one language. Entries with verbs are
// fmt templates.
type messages struct {
	askTitle       string
	askDueDate     string
	askDescription string
	statusDefault  string

	created          string
	updated          string
	deleted          string
	recurringCreated string

	titleRequired        string
	titleRequiredConfirm string
	idRequired           string
	recurringInvalid     string
	repeatInvalid        string
	taskNotFound         string
	forbidden            string

	noteInvalidDue string
	notePastDue    string
	openTasks      string

	rateLimited  string // max per window, seconds
	titleUpdated string // title, due
	timeUpdated  string // title, due
	proposal     string // lowercase title, due, title

	system     string // now
	classifier string
	chat       string
}

var locales = map[nlu.Lang]messages{
	nlu.English: {
		askTitle:       "What's the task title?",
		askDueDate:     "What's the due date/time (ISO, e.g., 2025-09-16T09:00:00Z, or say 'in 3 days')?",
		askDescription: "Could you provide a short description?",
		statusDefault:  "(Status defaults to 'pending' if not mentioned)",

		created:          "Task created",
		updated:          "Task updated",
		deleted:          "Task deleted",
		recurringCreated: "Recurring task created",

		titleRequired:        "title is required",
		titleRequiredConfirm: "title is required to confirm",
		idRequired:           "id is required",
		recurringInvalid:     "Need title, hour (0-23 UTC), and minute (0-59).",
		repeatInvalid:        "Repeat needs hour 0-23 UTC, minute 0-59, day_of_month 1-31 and frequency daily, weekly or monthly.",
		taskNotFound:         "Task not found",
		forbidden:            "Forbidden",

		noteInvalidDue: "Ignored invalid due_date; could not parse.",
		notePastDue:    "Ignored past due_date; provide a future date.",
		openTasks:      "The user's open tasks (use these ids for update_task and delete_task):",

		rateLimited:  "Rate limit hit (max %d/min per model). Try again in %d seconds.",
		titleUpdated: "Okay, I've updated the title. So %q at %s. Create it now?",
		timeUpdated:  "Okay, I've adjusted the time. So %q at %s. Create it now?",
		proposal:     "So you have a %s at %s. Should I create a task titled %q at that time?",

		system: `You are a task creation assistant. Today (UTC) is %s.
TASK:
- Interpret casual time into a reasonable future UTC timestamp (avoid past years).
- If status isn't provided, default to 'pending' (DO NOT ask for status).
- Keep titles short; infer from context (e.g., "Class", "Meeting").
- For time ranges, use the START time as due_date.
- If the user asks for a recurring habit, use the repeat object on create_task:
  - repeat.enabled=true
  - repeat.frequency: daily/weekly/monthly
  - repeat.interval: number (default 1)
  - For weekly: set repeat.days_of_week (0=Sun..6=Sat, UTC)
  - For monthly: set repeat.day_of_month (1..31)
  - Set repeat.hour and repeat.minute (UTC)
FLOW:
- First summarize your understanding (e.g., "So you have [event] at [date time]...") and ASK for confirmation: "Should I create a task titled "..." at [date time]?".
- Only CALL the create_task tool after the user confirms.`,
		classifier: `You are a classifier. Reply ONLY JSON like: {"confirm": true|false, "status": "pending"|"done"|null }. Decide if the user's message confirms creating the task. If there is a status hint (done), return it; else null.`,
		chat:       "Answer in English.",
	},
	nlu.Indonesian: {
		askTitle:       "Judul tugasnya apa?",
		askDueDate:     "Tanggal/waktu deadlinenya kapan (ISO, mis. 2025-09-16T09:00:00Z, atau 'dalam 3 hari')?",
		askDescription: "Bisa beri deskripsi singkat?",
		statusDefault:  "(Status akan diset 'pending' jika tidak disebutkan)",

		created:          "Task berhasil dibuat",
		updated:          "Task berhasil diupdate",
		deleted:          "Task berhasil dihapus",
		recurringCreated: "Recurring task dibuat",

		titleRequired:        "title wajib diisi",
		titleRequiredConfirm: "title wajib diisi untuk konfirmasi",
		idRequired:           "id wajib diisi",
		recurringInvalid:     "Butuh title, jam (0-23 UTC), dan menit (0-59).",
		repeatInvalid:        "Repeat butuh jam 0-23 UTC, menit 0-59, day_of_month 1-31 dan frequency daily, weekly atau monthly.",
		taskNotFound:         "Task tidak ditemukan",
		forbidden:            "Tidak diizinkan",

		noteInvalidDue: "due_date tidak valid; tidak bisa diparse.",
		notePastDue:    "due_date di masa lalu; mohon beri tanggal di masa depan.",
		openTasks:      "Tugas user yang masih terbuka (pakai id ini untuk update_task dan delete_task):",

		rateLimited:  "Kena rate limit (maks %d/menit per model). Coba lagi dalam %d detik.",
		titleUpdated: "Sip, judulnya aku ganti. Jadi %q pada %s. Mau aku buat?",
		timeUpdated:  "Sip, jamnya aku ganti. Jadi %q pada %s. Mau aku buat?",
		proposal:     "Jadi kamu punya %s pada %s. Mau aku buat tugas berjudul %q pada waktu itu?",

		system: `Kamu adalah asisten pembuatan tugas. Hari ini (UTC) %s.
TUGAS:
- Tafsirkan frasa waktu kasual (mis. "besok jam 8 pagi") menjadi timestamp UTC masa depan yang wajar (hindari tahun salah/masa lalu).
- Jika status tidak disebutkan, default 'pending' (JANGAN tanya status).
- Judul singkat; infer dari konteks (contoh: "Kelas", "Rapat").
- Untuk rentang, gunakan WAKTU MULAI sebagai due_date.
- Jika user minta kebiasaan/berulang, gunakan field repeat pada create_task:
  - repeat.enabled=true
  - repeat.frequency: daily/weekly/monthly
  - repeat.interval: angka (default 1)
  - Untuk weekly: set repeat.days_of_week (0=Min..6=Sabtu, UTC)
  - Untuk monthly: set repeat.day_of_month (1..31)
  - Set repeat.hour dan repeat.minute (UTC)
ALUR:
- Selalu ringkas pemahaman terlebih dahulu (contoh: "Jadi kamu punya [acara] pada [tanggal jam]...") lalu TANYAKAN konfirmasi: "Mau aku buat tugas berjudul "..." pada [tanggal jam]?".
- Baru PANGGIL tool create_task setelah user konfirmasi.`,
		classifier: `Kamu adalah pengklasifikasi. Balas HANYA JSON seperti: {"confirm": true|false, "status": "pending"|"done"|null }. Tentukan apakah pesan user adalah konfirmasi untuk membuat tugas. Jika ada indikasi status (done/selesai), kembalikan status itu; jika tidak ada, gunakan null.`,
		chat:       "Jawab dalam bahasa Indonesia.",
	},
}

func localeFor(lang nlu.Lang) messages {
	if m, ok := locales[lang]; ok {
		return m
	}
	return locales[nlu.English]
}

// clarifyingQuestions asks for everything needed to create a task.
func (m messages) clarifyingQuestions() string {
	return strings.Join([]string{m.askTitle, m.askDueDate, m.askDescription, m.statusDefault}, " ")
}

func (m messages) systemPrompt(now string) string {
	return fmt.Sprintf(m.system, now)
}
