// Package workspace binds one client's session manager and content
// orchestrator over shared backends.
package workspace

import (
	"context"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/content"
	"github.com/debemdeboas/quill/internal/identity"
	"github.com/debemdeboas/quill/internal/metrics"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/notify"
	"github.com/debemdeboas/quill/internal/session"
	"github.com/rs/zerolog"
)

// Factory holds the backends shared by every workspace.
type Factory struct {
	Identities *identity.Provider
	Documents  content.DocumentStore
	Blobs      content.BlobStore
	Logger     zerolog.Logger

	// OnChange is called with the id of every document a workspace commits
	// or deletes.
	OnChange func(model.DocumentID)
}

type Workspace struct {
	Session  *session.Manager
	Content  *content.Orchestrator
	Identity *identity.Client
	Notices  *notify.Queue
}

// New builds a workspace resuming token (may be empty), resolves its session
// and loads the document list. A failed list load leaves an empty list and
// is reported through the notice queue.
func (f *Factory) New(ctx context.Context, token string) (*Workspace, error) {
	queue := notify.NewQueue()
	notifier := notify.Multi{queue, notify.Log{Logger: f.Logger}}

	client := identity.NewClient(f.Identities, token)
	manager := session.NewManager(client, notifier)
	orchestrator := content.NewOrchestrator(f.Documents, f.Blobs, manager, notifier)
	if f.OnChange != nil {
		orchestrator.SetChangeNotifier(f.OnChange)
	}

	w := &Workspace{
		Session:  manager,
		Content:  orchestrator,
		Identity: client,
		Notices:  queue,
	}

	err := manager.Initialize(ctx)
	metrics.Observe("initialize", err)
	if err != nil {
		return w, err
	}

	_ = w.Refresh(ctx)
	return w, nil
}

func (w *Workspace) Token() string {
	return w.Identity.Token()
}

func (w *Workspace) Refresh(ctx context.Context) error {
	err := w.Content.ListAll(ctx)
	metrics.Observe("list", err)
	return err
}

func (w *Workspace) Register(ctx context.Context, email, password, displayName string) error {
	err := w.Session.Register(ctx, email, password, displayName)
	metrics.Observe("register", err)
	return err
}

func (w *Workspace) Login(ctx context.Context, email, password string) error {
	err := w.Session.Login(ctx, email, password)
	metrics.Observe("login", err)
	return err
}

// Logout ends the session and abandons any open editing session, which the
// anonymous caller could not save anyway.
func (w *Workspace) Logout(ctx context.Context) error {
	err := w.Session.Logout(ctx)
	metrics.Observe("logout", err)
	if !apperr.Is(err, apperr.KindPermission) {
		w.Content.Cancel()
	}
	return err
}

func (w *Workspace) BeginCreate() error {
	err := w.Content.BeginCreate()
	metrics.Observe("begin_create", err)
	return err
}

// BeginEdit opens an editing session on a document from the local list.
func (w *Workspace) BeginEdit(id model.DocumentID) error {
	doc, ok := w.Content.Find(id)
	if !ok {
		err := apperr.New(apperr.KindNotFound, "begin-edit", "post not found: "+string(id))
		metrics.Observe("begin_edit", err)
		return err
	}
	err := w.Content.BeginEdit(doc)
	metrics.Observe("begin_edit", err)
	return err
}

func (w *Workspace) Cancel() {
	w.Content.Cancel()
}

func (w *Workspace) Save(ctx context.Context, title, body string, asset *model.Asset) error {
	err := w.Content.Save(ctx, title, body, asset)
	metrics.Observe("save", err)
	return err
}

func (w *Workspace) Remove(ctx context.Context, id model.DocumentID, confirmed bool) error {
	err := w.Content.Remove(ctx, id, confirmed)
	metrics.Observe("remove", err)
	return err
}
