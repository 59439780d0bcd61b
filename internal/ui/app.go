package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dastanaron/linkmark/internal/models"
	"github.com/dastanaron/linkmark/internal/service"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	ModeNormal = 1
	ModeSearch = 2
	ModeForm   = 3
	ModeModal  = 4
)

var sortCycle = []models.SortField{
	models.SortByDateAdded,
	models.SortByName,
	models.SortByURL,
	models.SortByLastOpened,
}

// LinkServiceFactory builds a LinkService for a profile. The app uses it to
// rebind when the user switches profiles.
type LinkServiceFactory func(p models.Profile) (*service.LinkService, error)

// App represents the TUI application
type App struct {
	app    *tview.Application
	list   *tview.List
	detail *tview.TextView
	search *tview.InputField
	status *tview.TextView
	pages  *tview.Pages
	mode   uint8

	linkSvc    *service.LinkService
	profileSvc *service.ProfileService
	newLinkSvc LinkServiceFactory

	visible      []models.Link
	current      *models.Link
	subscription int
}

// NewApp creates the application bound to the current profile's links.
func NewApp(profileSvc *service.ProfileService, factory LinkServiceFactory) (*App, error) {
	a := &App{
		app:        tview.NewApplication(),
		list:       tview.NewList(),
		detail:     tview.NewTextView().SetDynamicColors(true).SetWrap(true),
		search:     tview.NewInputField().SetLabel("Search: "),
		status:     tview.NewTextView().SetDynamicColors(true),
		pages:      tview.NewPages(),
		mode:       ModeNormal,
		profileSvc: profileSvc,
		newLinkSvc: factory,
	}
	if err := a.bindProfile(profileSvc.Current()); err != nil {
		return nil, err
	}
	return a, nil
}

// Run starts the application
func (a *App) Run() error {
	a.list.SetBorder(true)
	a.detail.SetBorder(true).SetTitle("Details")

	cols := tview.NewFlex().
		AddItem(a.list, 0, 3, true).
		AddItem(a.detail, 0, 1, false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.search, 1, 0, false).
		AddItem(cols, 0, 1, true).
		AddItem(a.status, 1, 0, false)

	a.pages.AddPage("main", main, true, true)

	a.search.SetChangedFunc(func(text string) { a.fillList() })
	a.search.SetDoneFunc(a.onSearchDone)
	a.list.SetChangedFunc(a.onSelect)

	a.fillList()

	a.app.SetRoot(a.pages, true)
	a.app.SetInputCapture(a.globalInput)
	a.app.SetFocus(a.list)
	return a.app.Run()
}

// bindProfile attaches the app to a profile's link service and subscribes
// for refreshes after every mutation.
func (a *App) bindProfile(p models.Profile) error {
	svc, err := a.newLinkSvc(p)
	if err != nil {
		return err
	}
	if a.linkSvc != nil {
		a.linkSvc.Unsubscribe(a.subscription)
	}
	a.linkSvc = svc
	a.subscription = svc.Subscribe(func([]models.Link) { a.fillList() })
	a.list.SetTitle(fmt.Sprintf("Links [%s]", p.Name))
	return nil
}

func (a *App) fillList() {
	a.visible = a.linkSvc.Search(a.search.GetText())

	a.list.Clear()
	for i := range a.visible {
		index := i
		l := a.visible[i]
		a.list.AddItem(listLabel(l), l.URL, 0, func() {
			a.current = &a.visible[index]
			a.showDetails()
		})
	}

	if len(a.visible) > 0 {
		a.current = &a.visible[0]
	} else {
		a.current = nil
	}
	a.showDetails()
	a.updateStatus()
}

func listLabel(l models.Link) string {
	marker := "  "
	if l.IsFavorite {
		marker = "* "
	}
	if l.IsUnread() {
		return marker + "[::b]" + l.Name + "[::-]"
	}
	return marker + l.Name
}

func (a *App) updateStatus() {
	field, asc := a.linkSvc.SortConfig()
	dir := "desc"
	if asc {
		dir = "asc"
	}
	a.status.SetText(fmt.Sprintf(
		"[::b]/[::-] search  [::b]a[::-] add  [::b]A[::-] batch  [::b]e[::-] edit  [::b]d[::-] del  [::b]f[::-] fav  [::b]r[::-] read  [::b]t/T[::-] tags  [::b]Enter[::-] open  [::b]R/u[::-] random  [::b]s/S[::-] sort  [::b]p[::-] profile  [::b]q[::-] quit  [::b]%d[::-] links (sort: %s %s)",
		len(a.visible), field, dir))
}

func (a *App) showDetails() {
	if a.current == nil {
		a.detail.SetText("")
		return
	}

	l := a.current
	fav := "no"
	if l.IsFavorite {
		fav = "yes"
	}
	read := "unread"
	if l.IsRead {
		read = "read"
	}
	tags := "none"
	if len(l.Tags) > 0 {
		tags = strings.Join(l.Tags, ", ")
	}
	a.detail.SetText(fmt.Sprintf(
		"[::b]Name:[::-]\n%s\n\n[::b]URL:[::-]\n%s\n\n[::b]Domain:[::-]\n%s\n\n[::b]Tags:[::-]\n%s\n\n[::b]Added:[::-]\n%s\n\n[::b]Last opened:[::-]\n%s\n\n[::b]Favorite:[::-] %s\n[::b]Status:[::-] %s",
		l.Name, l.URL, l.Host(), tags, formatTime(&l.DateAdded), formatTime(l.DateLastOpened), fav, read))
}

// formatTime renders a nullable timestamp for display.
func formatTime(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.Format("2006-01-02 15:04")
}

func (a *App) setMode(m uint8) {
	a.mode = m
	switch m {
	case ModeSearch:
		a.app.SetFocus(a.search)
	case ModeNormal:
		a.app.SetFocus(a.list)
	}
}

func (a *App) onSearchDone(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		a.setMode(ModeNormal)
	case tcell.KeyEscape:
		a.search.SetText("")
		a.fillList()
		a.setMode(ModeNormal)
	}
}

func (a *App) onSelect(index int, mainText, secondaryText string, shortcut rune) {
	if index >= 0 && index < len(a.visible) {
		a.current = &a.visible[index]
		a.showDetails()
	}
}

func (a *App) globalInput(event *tcell.EventKey) *tcell.EventKey {
	if a.pages.HasPage("confirm") || a.pages.HasPage("error") ||
		a.pages.HasPage("profiles") || a.pages.HasPage("tags") {
		return event
	}

	switch a.mode {
	case ModeNormal:
		switch event.Key() {
		case tcell.KeyEnter:
			a.openCurrent()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case '/':
				a.setMode(ModeSearch)
				return nil
			case 'a':
				a.showLinkForm(nil)
				return nil
			case 'A':
				a.showBatchForm()
				return nil
			case 'e':
				if a.current != nil {
					a.showLinkForm(a.current)
				}
				return nil
			case 'd':
				a.deleteCurrent()
				return nil
			case 'f':
				if a.current != nil {
					if _, err := a.linkSvc.ToggleFavorite([]int64{a.current.ID}); err != nil {
						a.showError(fmt.Sprintf("Error: %v", err))
					}
				}
				return nil
			case 'r':
				if a.current != nil {
					if _, err := a.linkSvc.ToggleRead([]int64{a.current.ID}); err != nil {
						a.showError(fmt.Sprintf("Error: %v", err))
					}
				}
				return nil
			case 't':
				if a.current != nil {
					a.showTagForm(a.current)
				}
				return nil
			case 'T':
				a.showTagBrowser()
				return nil
			case 'o':
				a.openCurrent()
				return nil
			case 'R':
				a.openRandom(false)
				return nil
			case 'u':
				a.openRandom(true)
				return nil
			case 's':
				a.cycleSortField()
				return nil
			case 'S':
				field, asc := a.linkSvc.SortConfig()
				a.linkSvc.SetSort(field, !asc)
				a.fillList()
				return nil
			case 'p':
				a.showProfiles()
				return nil
			case 'q':
				a.app.Stop()
				return nil
			}
		}
	case ModeForm:
		if event.Key() == tcell.KeyEscape {
			a.pages.RemovePage("form")
			a.setMode(ModeNormal)
			return nil
		}
	}
	return event
}

func (a *App) openCurrent() {
	if a.current == nil {
		return
	}
	result, err := a.linkSvc.Open([]int64{a.current.ID})
	if err != nil {
		a.showError(fmt.Sprintf("Error opening link: %v", err))
		return
	}
	for _, f := range result.Failed {
		a.showError(fmt.Sprintf("Could not open link %d: %v", f.ID, f.Err))
	}
}

func (a *App) openRandom(unreadOnly bool) {
	l := a.linkSvc.Random(unreadOnly)
	if l == nil {
		a.showError("No eligible links.")
		return
	}
	if _, err := a.linkSvc.Open([]int64{l.ID}); err != nil {
		a.showError(fmt.Sprintf("Error opening link: %v", err))
	}
}

func (a *App) cycleSortField() {
	field, asc := a.linkSvc.SortConfig()
	for i, f := range sortCycle {
		if f == field {
			a.linkSvc.SetSort(sortCycle[(i+1)%len(sortCycle)], asc)
			break
		}
	}
	a.fillList()
}

func (a *App) deleteCurrent() {
	if a.current == nil {
		return
	}
	id := a.current.ID
	a.showConfirm(fmt.Sprintf("Delete link '%s'?", a.current.Name), func() {
		if _, err := a.linkSvc.Delete([]int64{id}); err != nil {
			a.showError(fmt.Sprintf("Error deleting link: %v", err))
		}
	})
}

// showLinkForm opens the add/edit form. A nil link means a new one.
func (a *App) showLinkForm(link *models.Link) {
	var name, url string
	edit := link != nil
	if edit {
		name, url = link.Name, link.URL
	}

	form := tview.NewForm()
	form.AddInputField("Name", name, 60, nil, func(t string) { name = t })
	form.AddInputField("URL", url, 60, nil, func(t string) { url = t })

	form.AddButton("Save", func() {
		var err error
		if edit {
			_, err = a.linkSvc.Edit(link.ID, service.LinkEdit{Name: &name, URL: &url})
		} else {
			_, err = a.linkSvc.Add(name, url)
		}
		if err != nil {
			a.showError(fmt.Sprintf("Error saving link: %v", err))
			return
		}
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
	})

	title := "New Link"
	if edit {
		title = "Edit Link"
	}
	form.SetBorder(true).SetTitle(title)
	a.pages.AddPage("form", modalCenter(form, 70, 11), true, true)
	a.app.SetFocus(form)
	a.mode = ModeForm
}

// showBatchForm opens a textarea for pasting many URLs, one per line.
func (a *App) showBatchForm() {
	area := tview.NewTextArea()
	form := tview.NewForm()
	form.AddFormItem(area.SetLabel("URLs"))

	form.AddButton("Add all", func() {
		var entries []service.BatchEntry
		for _, line := range strings.Split(area.GetText(), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			entries = append(entries, service.BatchEntry{URL: line})
		}
		result, err := a.linkSvc.AddBatch(entries)
		if err != nil {
			a.showError(fmt.Sprintf("Error adding links: %v", err))
			return
		}
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
		if len(result.Failed) > 0 {
			a.showError(fmt.Sprintf("Added %d links, skipped %d invalid entries.", len(result.Added), len(result.Failed)))
		}
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
	})

	form.SetBorder(true).SetTitle("Add Links (one URL per line)")
	a.pages.AddPage("form", modalCenter(form, 70, 16), true, true)
	a.app.SetFocus(form)
	a.mode = ModeForm
}

// showTagForm opens a form to replace a link's tags, comma-separated.
func (a *App) showTagForm(link *models.Link) {
	tags := strings.Join(link.Tags, ", ")

	form := tview.NewForm()
	form.AddInputField("Tags", tags, 60, nil, func(t string) { tags = t })

	form.AddButton("Save", func() {
		split := strings.Split(tags, ",")
		if _, err := a.linkSvc.Edit(link.ID, service.LinkEdit{Tags: &split}); err != nil {
			a.showError(fmt.Sprintf("Error saving tags: %v", err))
			return
		}
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
	})

	form.SetBorder(true).SetTitle(fmt.Sprintf("Tags for '%s' (comma-separated)", link.Name))
	a.pages.AddPage("form", modalCenter(form, 70, 9), true, true)
	a.app.SetFocus(form)
	a.mode = ModeForm
}

// showTagBrowser lists every tag with its usage count; selecting one
// filters the list through the search bar.
func (a *App) showTagBrowser() {
	tags := a.linkSvc.AllTags()
	if len(tags) == 0 {
		a.showError("No tags yet. Press 't' on a link to tag it.")
		return
	}
	counts := a.linkSvc.TagCounts()

	list := tview.NewList()
	for _, tag := range tags {
		tag := tag
		list.AddItem(fmt.Sprintf("%s (%d)", tag, counts[tag]), "", 0, func() {
			a.pages.RemovePage("tags")
			a.search.SetText(tag)
			a.fillList()
			a.setMode(ModeNormal)
		})
	}
	list.SetDoneFunc(func() {
		a.pages.RemovePage("tags")
		a.setMode(ModeNormal)
	})

	list.SetBorder(true).SetTitle("Tags")
	a.pages.AddPage("tags", modalCenter(list, 40, 14), true, true)
	a.mode = ModeModal
	a.app.SetFocus(list)
}

// showProfiles opens the profile switcher.
func (a *App) showProfiles() {
	list := tview.NewList()
	current := a.profileSvc.Current().Name

	for _, p := range a.profileSvc.All() {
		name := p.Name
		label := name
		if name == current {
			label += " (current)"
		}
		if p.IsDefault {
			label += " [default]"
		}
		list.AddItem(label, "", 0, func() {
			a.pages.RemovePage("profiles")
			a.setMode(ModeNormal)
			if name == current {
				return
			}
			if err := a.switchProfile(name); err != nil {
				a.showError(fmt.Sprintf("Error switching profile: %v", err))
			}
		})
	}
	list.AddItem("New profile...", "", 0, func() {
		a.pages.RemovePage("profiles")
		a.showProfileForm()
	})

	list.SetDoneFunc(func() {
		a.pages.RemovePage("profiles")
		a.setMode(ModeNormal)
	})

	list.SetBorder(true).SetTitle("Profiles")
	a.pages.AddPage("profiles", modalCenter(list, 50, 14), true, true)
	a.mode = ModeModal
	a.app.SetFocus(list)
}

func (a *App) showProfileForm() {
	var name string
	form := tview.NewForm()
	form.AddInputField("Name", "", 40, nil, func(t string) { name = t })
	form.AddButton("Create", func() {
		p, err := a.profileSvc.Create(name, false)
		if err != nil {
			a.showError(fmt.Sprintf("Error creating profile: %v", err))
			return
		}
		a.pages.RemovePage("form")
		if err := a.switchProfile(p.Name); err != nil {
			a.showError(fmt.Sprintf("Error switching profile: %v", err))
		}
		a.setMode(ModeNormal)
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
	})

	form.SetBorder(true).SetTitle("New Profile")
	a.pages.AddPage("form", modalCenter(form, 50, 9), true, true)
	a.app.SetFocus(form)
	a.mode = ModeForm
}

func (a *App) switchProfile(name string) error {
	if err := a.profileSvc.Switch(name); err != nil {
		return err
	}
	if err := a.bindProfile(a.profileSvc.Current()); err != nil {
		return err
	}
	a.search.SetText("")
	a.fillList()
	return nil
}

// showError shows a modal with an error message
func (a *App) showError(message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage("error")
			a.restoreFocus()
		})

	modal.SetBorder(true).SetTitle("Error")
	a.pages.AddPage("error", modal, true, true)
	a.mode = ModeModal
	a.app.SetFocus(modal)
}

func (a *App) showConfirm(message string, onConfirm func()) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"Cancel", "OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage("confirm")
			if buttonIndex == 1 && onConfirm != nil {
				onConfirm()
			}
			a.restoreFocus()
		})

	modal.SetBorder(true).SetTitle("Confirm")
	a.pages.AddPage("confirm", modal, true, true)
	a.mode = ModeModal
	a.app.SetFocus(modal)
}

func (a *App) restoreFocus() {
	if a.pages.HasPage("form") {
		a.mode = ModeForm
		return
	}
	a.mode = ModeNormal
	a.app.SetFocus(a.list)
}

// modalCenter wraps a primitive in a fixed-size centered frame.
func modalCenter(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}
