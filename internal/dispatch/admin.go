package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/lockbot/internal/access"
	"github.com/nerrad567/lockbot/internal/i18n"
	"github.com/nerrad567/lockbot/internal/session"
)

// toggleRows pairs each capability with its label key, laid out as the
// edit keyboard rows.
var toggleRows = [][]struct {
	capability access.Capability
	labelKey   string
}{
	{{access.CapLock, "close"}, {access.CapUnlock, "unlock"}},
	{{access.CapOpen, "open_door"}, {access.CapLockNGo, "lockngo"}},
	{{access.CapStatus, "status"}},
}

// handleAdmin runs an admin button. The caller has checked ownership.
func (d *Dispatcher) handleAdmin(t *turn, b ButtonPress) string {
	if b.BadTarget != "" {
		d.send(t, Response{Text: d.text(t, "user_not_found", i18n.Vars{"uid": b.BadTarget})})
		return outcomeInvalid
	}

	switch b.Kind {
	case ButtonAdminAddUser:
		d.applySession(t, session.EventAddUser, 0)
		d.send(t, Response{Text: d.text(t, "add_user_intro", nil)})
	case ButtonAdminListUsers:
		d.applySession(t, session.EventListUsers, 0)
		d.showUserList(t)
	case ButtonAdminEdit:
		rec, ok := d.store.Lookup(b.Target)
		if !ok {
			return d.userNotFound(t, b.Target)
		}
		d.applySession(t, session.EventEditUser, b.Target)
		view := d.editView(t, rec, "")
		view.Replace = false
		d.send(t, view)
	case ButtonAdminToggle:
		return d.toggle(t, b.Target, b.Capability)
	case ButtonAdminGrantAll:
		return d.setAll(t, b.Target, true)
	case ButtonAdminRevokeAll:
		return d.setAll(t, b.Target, false)
	case ButtonAdminDelete:
		return d.deleteUser(t, b.Target)
	case ButtonAdminBack:
		d.sessions.Reset(t.id)
		d.send(t, Response{Text: d.text(t, "menu_actions", nil), Buttons: d.mainMenu(t)})
	}
	return outcomeOK
}

func (d *Dispatcher) applySession(t *turn, ev session.Event, target access.Identity) {
	if _, err := d.sessions.Apply(t.id, ev, target); err != nil {
		d.logger.Warn("admin session transition rejected", "request_id", t.req.ID, "event", ev, "error", err)
	}
}

func (d *Dispatcher) userNotFound(t *turn, target access.Identity) string {
	d.send(t, Response{Text: d.text(t, "user_not_found", i18n.Vars{"uid": target})})
	return outcomeInvalid
}

// showUserList lists non-owner records with one edit button each.
func (d *Dispatcher) showUserList(t *turn) {
	var visible []access.UserRecord
	for _, u := range d.store.List() {
		if !d.store.IsOwner(u.Identity) {
			visible = append(visible, u)
		}
	}
	if len(visible) == 0 {
		d.send(t, Response{Text: d.text(t, "no_users", nil)})
		return
	}

	lines := []string{d.text(t, "users_title", nil)}
	rows := make([][]Button, 0, len(visible)+1)
	for _, u := range visible {
		name := displayName(u)
		lines = append(lines, fmt.Sprintf("- %s [%d]", name, u.Identity))
		rows = append(rows, []Button{{
			Label: fmt.Sprintf("%s (%d)", name, u.Identity),
			Data:  ButtonPress{Kind: ButtonAdminEdit, Target: u.Identity}.Data(),
		}})
	}
	rows = append(rows, []Button{d.backButton(t)})

	d.send(t, Response{Text: strings.Join(lines, "\n"), Buttons: rows})
}

// editView renders the permission editor for rec. notice, when set, is
// shown under the header.
func (d *Dispatcher) editView(t *turn, rec access.UserRecord, notice string) Response {
	text := d.text(t, "edit_user_header", nil) + fmt.Sprintf("%s [%d]", displayName(rec), rec.Identity)
	if notice != "" {
		text += "\n\n" + notice
	}

	rows := make([][]Button, 0, len(toggleRows)+2)
	for _, toggles := range toggleRows {
		row := make([]Button, 0, len(toggles))
		for _, tg := range toggles {
			mark := "❌ "
			if rec.Has(tg.capability) {
				mark = "✅ "
			}
			row = append(row, Button{
				Label: mark + d.label(t, tg.labelKey),
				Data:  ButtonPress{Kind: ButtonAdminToggle, Target: rec.Identity, Capability: tg.capability}.Data(),
			})
		}
		rows = append(rows, row)
	}
	rows = append(rows,
		[]Button{
			{Label: d.label(t, "perm_all"), Data: ButtonPress{Kind: ButtonAdminGrantAll, Target: rec.Identity}.Data()},
			{Label: d.label(t, "perm_none"), Data: ButtonPress{Kind: ButtonAdminRevokeAll, Target: rec.Identity}.Data()},
		},
		[]Button{
			{Label: d.label(t, "perm_delete"), Data: ButtonPress{Kind: ButtonAdminDelete, Target: rec.Identity}.Data()},
			d.backButton(t),
		},
	)
	return Response{Text: text, Buttons: rows, Replace: true}
}

func (d *Dispatcher) backButton(t *turn) Button {
	return Button{Label: d.label(t, "perm_back"), Data: ButtonPress{Kind: ButtonAdminBack}.Data()}
}

// toggle flips one capability and re-renders the editor in place.
func (d *Dispatcher) toggle(t *turn, target access.Identity, c access.Capability) string {
	_, err := d.store.ToggleCapability(t.ctx, target, c)
	if errors.Is(err, access.ErrUserNotFound) {
		return d.userNotFound(t, target)
	}
	return d.rerenderEditor(t, target, "", err)
}

// setAll grants or revokes every capability. A no-op is reported distinctly
// and not written.
func (d *Dispatcher) setAll(t *turn, target access.Identity, grantAll bool) string {
	if _, ok := d.store.Lookup(target); !ok {
		return d.userNotFound(t, target)
	}

	changed, err := d.store.SetAllCapabilities(t.ctx, target, grantAll)
	notice := ""
	if !changed && err == nil {
		notice = d.text(t, "perm_none_unchanged", nil)
		if grantAll {
			notice = d.text(t, "perm_all_unchanged", nil)
		}
	}
	return d.rerenderEditor(t, target, notice, err)
}

func (d *Dispatcher) rerenderEditor(t *turn, target access.Identity, notice string, err error) string {
	rec, ok := d.store.Lookup(target)
	if !ok {
		return d.userNotFound(t, target)
	}
	if err != nil {
		notice = d.withSaveWarning(t, notice, err)
	}
	d.applySession(t, session.EventEditUser, target)
	d.send(t, d.editView(t, rec, strings.TrimSpace(notice)))
	return outcomeOK
}

// deleteUser removes target and leaves the admin on a view with only "back".
func (d *Dispatcher) deleteUser(t *turn, target access.Identity) string {
	existed, err := d.store.Delete(t.ctx, target)
	if !existed {
		return d.userNotFound(t, target)
	}
	d.applySession(t, session.EventUserDeleted, 0)

	text := d.withSaveWarning(t, d.text(t, "user_deleted", i18n.Vars{"uid": target}), err)
	d.send(t, Response{Text: text, Buttons: [][]Button{{d.backButton(t)}}})
	return outcomeOK
}

// addUser parses "<identity> [name]" while the wizard awaits input.
// Invalid input re-prompts and leaves the wizard where it is.
func (d *Dispatcher) addUser(t *turn, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		d.send(t, Response{Text: d.text(t, "add_user_invalid_format", nil)})
		return outcomeInvalid
	}
	id, err := access.ParseIdentity(fields[0])
	if err != nil {
		d.send(t, Response{Text: d.text(t, "add_user_invalid_format", nil)})
		return outcomeInvalid
	}

	name := strings.Join(fields[1:], " ")
	if name == "" {
		name = fmt.Sprintf("user_%d", id)
	}

	err = d.store.Upsert(t.ctx, id, name, nil)
	d.applySession(t, session.EventUserAdded, 0)
	d.logger.Info("user added", "request_id", t.req.ID, "by", t.id, "identity", id)

	msg := d.withSaveWarning(t, d.text(t, "add_user_ok", i18n.Vars{"uid": id, "name": name}), err)
	d.send(t, Response{Text: msg, Buttons: d.mainMenu(t)})
	return outcomeOK
}

func displayName(u access.UserRecord) string {
	if u.Name == "" {
		return "(no name)"
	}
	return u.Name
}
