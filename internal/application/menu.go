package application

import (
	"github.com/JonMunkholm/dropzone/internal/admin"
	"github.com/JonMunkholm/dropzone/internal/handler"
	tea "github.com/charmbracelet/bubbletea"
)

/* ----------------------------------------
	MENU TREE
---------------------------------------- */

type MenuItem struct {
	Label   string
	Submenu *Menu
	Action  func() tea.Cmd
}

type Menu struct {
	Title  string
	Items  []MenuItem
	Parent *Menu
}

/* ----------------------------------------
	MENU TREE DEFINITION
---------------------------------------- */

func linkParents(menu *Menu, parent *Menu) {
	menu.Parent = parent

	for i := range menu.Items {
		item := &menu.Items[i]

		if item.Label == "Back" {
			item.Submenu = parent
			continue
		}

		if item.Submenu != nil {
			linkParents(item.Submenu, menu)
		}
	}
}

func buildMenuTree(m *Model) *Menu {
	classifier := handler.NewClassifier(m.svc)

	/* Submenus */
	submenuInfo := &Menu{
		Title: "Info",
		Items: []MenuItem{
			{Label: "Show Schemas", Action: classifier.ListSchemas},
			{Label: "Show Last Run", Action: classifier.LastRun},
			{Label: "Show Settings", Action: func() tea.Cmd {
				return func() tea.Msg { return handler.WdMsg(m.svc.String()) }
			}},
			{Label: "Back"},
		},
	}

	requeue := loadRequeue(m)

	/* Root Menu */
	root := &Menu{
		Title: "Main Menu",
		Items: []MenuItem{
			{Label: "Classify Drop Zone", Action: classifier.Classify},
			{Label: "Dry Run", Action: classifier.DryRun},
			{Label: "Info ->", Submenu: submenuInfo},
			{Label: "Requeue ->", Submenu: requeue},
		},
	}

	linkParents(root, nil)

	return root
}

/* ----------------------------------------
	LOAD MENUS
---------------------------------------- */

func loadRequeue(m *Model) *Menu {
	requeuer := &admin.Requeuer{Router: m.svc.Router()}

	return &Menu{
		Title: "Requeue",
		Items: []MenuItem{
			{Label: "Requeue Unclassified", Action: requeuer.RequeueUnclassified},
			{Label: "Requeue Rejected", Action: requeuer.RequeueRejected},
			{Label: "Back"},
		},
	}
}
