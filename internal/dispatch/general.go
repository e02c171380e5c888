package dispatch

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/lockbot/internal/access"
	"github.com/nerrad567/lockbot/internal/i18n"
	"github.com/nerrad567/lockbot/internal/session"
)

// mainMenu builds the action keyboard. Buttons for capabilities the identity
// lacks are omitted.
func (d *Dispatcher) mainMenu(t *turn) [][]Button {
	cmd := func(key, name string) Button {
		return Button{Label: d.label(t, key), Data: ButtonPress{Kind: ButtonCommand, Command: name}.Data()}
	}
	can := func(c access.Capability) bool { return d.policy.Authorize(t.id, c) }

	var rows [][]Button
	var row []Button
	if can(access.CapLock) {
		row = append(row, cmd("close", "lock"))
	}
	if can(access.CapUnlock) {
		row = append(row, cmd("unlock", "unlock"))
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	row = nil
	if can(access.CapOpen) {
		row = append(row, cmd("open_door", "open"))
	}
	if can(access.CapLockNGo) {
		row = append(row, cmd("lockngo", "lockngo"))
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	row = nil
	if can(access.CapStatus) {
		row = append(row, cmd("status", "status"))
	}
	row = append(row, cmd("id", "id"))
	rows = append(rows, row)

	rows = append(rows, []Button{{Label: d.label(t, "lang"), Data: ButtonPress{Kind: ButtonLangMenu}.Data()}})

	if d.policy.IsAdmin(t.id) {
		rows = append(rows, []Button{
			{Label: d.label(t, "add_user"), Data: ButtonPress{Kind: ButtonAdminAddUser}.Data()},
			{Label: d.label(t, "list_users"), Data: ButtonPress{Kind: ButtonAdminListUsers}.Data()},
		})
	}
	return rows
}

// greet answers /start and /menu.
func (d *Dispatcher) greet(t *turn) {
	var text string
	if d.policy.IsAdmin(t.id) {
		text = d.text(t, "start_admin", nil)
	} else {
		text = d.text(t, "start_user", i18n.Vars{"perms": d.permissionList(t, d.policy.Granted(t.id))})
	}
	d.send(t, Response{Text: text, Buttons: d.mainMenu(t)})
}

// permissionList joins capabilities alphabetically, or the "none" text.
func (d *Dispatcher) permissionList(t *turn, caps []access.Capability) string {
	if len(caps) == 0 {
		return d.text(t, "perms_none", nil)
	}
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

// showIdentity echoes what the transport and the bot know about the caller.
// The menu is attached only for known identities.
func (d *Dispatcher) showIdentity(t *turn) {
	s := t.req.Sender
	orNone := func(v string) string {
		if v == "" {
			return "(none)"
		}
		return v
	}
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}

	lines := []string{
		"Telegram:",
		fmt.Sprintf("- chat_id: %d", t.id),
		fmt.Sprintf("- user_id: %d", s.UserID),
	}
	if s.Username != "" {
		lines = append(lines, "- username: @"+s.Username)
	} else {
		lines = append(lines, "- username: (none)")
	}
	lines = append(lines,
		"- first_name: "+orNone(s.FirstName),
		"- last_name: "+orNone(s.LastName),
	)
	if s.LanguageCode != "" {
		lines = append(lines, "- telegram_lang: "+s.LanguageCode)
	}

	rec, known := d.store.Lookup(t.id)
	admin := d.policy.IsAdmin(t.id)
	lines = append(lines,
		"",
		"Bot:",
		"- known_user: "+yesNo(known),
		"- admin: "+yesNo(admin),
	)
	if known {
		name := rec.Name
		if name == "" {
			name = "(no name)"
		}
		perms := "(none)"
		if len(rec.Allowed) > 0 {
			names := make([]string, len(rec.Allowed))
			for i, c := range rec.Allowed {
				names[i] = string(c)
			}
			slices.Sort(names)
			perms = strings.Join(names, ", ")
		}
		lines = append(lines,
			"- name: "+name,
			"- lang: "+string(rec.Lang),
			"- permissions: "+perms,
		)
	}

	resp := Response{Text: strings.Join(lines, "\n")}
	if known || admin {
		resp.Buttons = d.mainMenu(t)
	}
	d.send(t, resp)
}

// cancel answers /cancel. Only an admin in a wizard state has something to cancel.
func (d *Dispatcher) cancel(t *turn) {
	key := "nothing_to_cancel"
	if d.policy.IsAdmin(t.id) && d.sessions.Reset(t.id) {
		key = "operation_cancelled"
	}
	d.send(t, Response{Text: d.text(t, key, nil), Buttons: d.mainMenu(t)})
}

func (d *Dispatcher) languageMenu(t *turn) {
	d.send(t, Response{
		Text: d.text(t, "lang_choose", nil),
		Buttons: [][]Button{{
			{Label: d.label(t, "lang_it"), Data: ButtonPress{Kind: ButtonLangSet, Lang: string(access.LangIT)}.Data()},
			{Label: d.label(t, "lang_en"), Data: ButtonPress{Kind: ButtonLangSet, Lang: string(access.LangEN)}.Data()},
		}},
	})
}

func (d *Dispatcher) setLanguage(t *turn, lang access.Language) {
	err := d.store.SetLanguage(t.ctx, t.id, lang)
	t.lang = string(lang)

	d.send(t, Response{Text: d.withSaveWarning(t, d.text(t, "lang_updated", nil), err)})
	d.send(t, Response{Text: d.text(t, "menu_actions", nil), Buttons: d.mainMenu(t)})
}

// handleText feeds the add-user wizard or hints at the buttons.
func (d *Dispatcher) handleText(t *turn, p PlainText) string {
	if d.policy.IsAdmin(t.id) && d.sessions.Get(t.id).State == session.AwaitingNewUserInput {
		return d.addUser(t, p.Text)
	}

	key, vars := "unknown_text", i18n.Vars(nil)
	if strings.HasPrefix(p.Text, "/") {
		key, vars = "not_a_command", i18n.Vars{"text": p.Text}
	}
	d.send(t, Response{Text: d.text(t, key, vars), Buttons: d.mainMenu(t)})
	return outcomeUnknown
}

// withSaveWarning appends the persistence warning when err is a save failure.
func (d *Dispatcher) withSaveWarning(t *turn, text string, err error) string {
	if err == nil {
		return text
	}
	if !errors.Is(err, access.ErrPersist) {
		d.logger.Error("store update failed", "request_id", t.req.ID, "error", err)
	}
	return text + "\n\n" + d.text(t, "save_failed", nil)
}
