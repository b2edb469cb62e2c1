// Package content coordinates authoring of documents: the local collection,
// the editing target and the asset-then-document write.
package content

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/notify"
	"github.com/rs/zerolog"
)

var contentLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	contentLogger = l
}

// DocumentStore is the remote document collection.
type DocumentStore interface {
	// List returns every document, newest first.
	List(ctx context.Context) ([]model.Document, error)
	Create(ctx context.Context, p model.Payload) (model.Document, error)
	Update(ctx context.Context, id model.DocumentID, p model.Payload) (model.Document, error)
	Delete(ctx context.Context, id model.DocumentID) error
}

// BlobStore persists assets and returns a retrievable reference.
type BlobStore interface {
	Upload(ctx context.Context, asset model.Asset) (string, error)
}

// Authorizer answers who is acting and what they may touch.
type Authorizer interface {
	Current() (model.Identity, bool)
	CanModify(doc model.Document) bool
}

// ErrBusy is returned when a mutating call overlaps another one.
var ErrBusy = apperr.New(apperr.KindConflict, "content", "another operation is in progress")

type Orchestrator struct {
	mu        sync.RWMutex
	documents []model.Document
	target    model.EditingTarget
	// generation counts target changes so a commit only clears the target
	// it started from.
	generation uint64

	busy atomic.Bool

	docs     DocumentStore
	blobs    BlobStore
	auth     Authorizer
	notifier notify.Notifier

	// Called after a committed write or delete.
	onChange func(id model.DocumentID)
}

func NewOrchestrator(docs DocumentStore, blobs BlobStore, auth Authorizer, notifier notify.Notifier) *Orchestrator {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Orchestrator{
		docs:     docs,
		blobs:    blobs,
		auth:     auth,
		notifier: notifier,
	}
}

// SetChangeNotifier sets a function called with the id of every document
// committed or deleted through this orchestrator.
func (o *Orchestrator) SetChangeNotifier(fn func(model.DocumentID)) {
	o.onChange = fn
}

// Busy reports whether a mutating call is in flight. Callers must not issue
// another mutating call while it is true.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

func (o *Orchestrator) acquire() bool {
	return o.busy.CompareAndSwap(false, true)
}

func (o *Orchestrator) release() {
	o.busy.Store(false)
}

// Documents returns a copy of the local collection.
func (o *Orchestrator) Documents() []model.Document {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.documents)
}

// Find returns the local copy of the document with the given id.
func (o *Orchestrator) Find(id model.DocumentID) (model.Document, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	i := o.indexOf(id)
	if i < 0 {
		return model.Document{}, false
	}
	return o.documents[i], true
}

func (o *Orchestrator) Target() model.EditingTarget {
	t, _ := o.snapshotTarget()
	return t
}

func (o *Orchestrator) snapshotTarget() (model.EditingTarget, uint64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t := o.target
	if t.Document != nil {
		d := *t.Document
		t.Document = &d
	}
	return t, o.generation
}

// ListAll replaces the local collection with the store's. On failure the
// previous collection is kept.
func (o *Orchestrator) ListAll(ctx context.Context) error {
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	return o.listAll(ctx)
}

func (o *Orchestrator) listAll(ctx context.Context) error {
	docs, err := o.docs.List(ctx)
	if err != nil {
		err = apperr.Classify("list", err)
		contentLogger.Error().Err(err).Msg("Error listing documents")
		o.notifier.Notify(notify.Failure(err, "Failed to fetch posts."))
		return err
	}

	docs = normalize(docs)

	o.mu.Lock()
	o.documents = docs
	o.mu.Unlock()

	contentLogger.Debug().Int("count", len(docs)).Msg("Documents refreshed")
	return nil
}

// BeginCreate opens a creating session, replacing any active one.
func (o *Orchestrator) BeginCreate() error {
	if _, ok := o.auth.Current(); !ok {
		return apperr.New(apperr.KindPermission, "begin-create", "login required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.setTarget(model.EditingTarget{Mode: model.EditingCreating})
	return nil
}

// BeginEdit opens an editing session on doc, replacing any active one. The
// ownership check is enforced here regardless of what the caller displayed.
func (o *Orchestrator) BeginEdit(doc model.Document) error {
	if !o.auth.CanModify(doc) {
		return apperr.New(apperr.KindPermission, "begin-edit", "only the author can edit this post")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.setTarget(model.EditingTarget{Mode: model.EditingEditing, Document: &doc})
	return nil
}

func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setTarget(model.EditingTarget{})
}

// setTarget must be called with o.mu held.
func (o *Orchestrator) setTarget(t model.EditingTarget) {
	o.target = t
	o.generation++
}

// Save commits the active editing session. The asset, if any, is uploaded
// before the document is written; a failed upload means no document write.
// On success the target is cleared and the collection re-fetched so that
// store-assigned fields are picked up. On failure the target is kept.
func (o *Orchestrator) Save(ctx context.Context, title, body string, asset *model.Asset) error {
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	target, generation := o.snapshotTarget()
	op := "create"
	if target.Mode == model.EditingEditing {
		op = "update"
	}

	err := o.save(ctx, op, target, generation, title, body, asset)
	if err != nil {
		contentLogger.Warn().Err(err).Str("op", op).Msg("Save failed")
		o.notifier.Notify(notify.Failure(err, "Failed to "+op+" post."))
		return err
	}
	return nil
}

func (o *Orchestrator) save(ctx context.Context, op string, target model.EditingTarget, generation uint64, title, body string, asset *model.Asset) error {
	if !target.Active() {
		return apperr.New(apperr.KindValidation, op, "no post is being edited")
	}
	if err := model.ValidateContent(title, body); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, err)
	}

	identity, ok := o.auth.Current()
	if !ok {
		return apperr.New(apperr.KindPermission, op, "login required")
	}
	if err := o.authorizeTarget(op, target); err != nil {
		return err
	}

	payload := model.Payload{
		Title:             title,
		Body:              body,
		AuthorID:          identity.ID,
		AuthorDisplayName: identity.AuthorName(),
	}
	if target.Document != nil {
		payload.AssetRef = target.Document.AssetRef
		// The author never changes on update.
		payload.AuthorID = target.Document.AuthorID
	}

	if !asset.Empty() {
		ref, err := o.blobs.Upload(ctx, *asset)
		if err != nil {
			return apperr.Wrap(apperr.KindAssetUpload, op, err)
		}
		payload.AssetRef = ref
		contentLogger.Debug().Str("asset_ref", ref).Msg("Asset uploaded")
	}

	// Authorization may have changed while the asset was uploading.
	if err := o.authorizeTarget(op, target); err != nil {
		return err
	}

	var (
		doc model.Document
		err error
	)
	if target.Mode == model.EditingEditing {
		doc, err = o.docs.Update(ctx, target.Document.ID, payload)
	} else {
		doc, err = o.docs.Create(ctx, payload)
	}
	if err != nil {
		return apperr.Classify(op, err)
	}

	// A session opened while this one was committing is left alone.
	o.mu.Lock()
	if o.generation == generation {
		o.setTarget(model.EditingTarget{})
	}
	o.mu.Unlock()

	contentLogger.Info().Str("document_id", string(doc.ID)).Str("op", op).Msg("Document committed")
	if target.Mode == model.EditingEditing {
		o.notifier.Notify(notify.Success("Post updated successfully!"))
	} else {
		o.notifier.Notify(notify.Success("Post created successfully!"))
	}
	o.changed(doc.ID)

	// The commit stands even if the refresh fails; listAll reports it.
	_ = o.listAll(ctx)
	return nil
}

func (o *Orchestrator) authorizeTarget(op string, target model.EditingTarget) error {
	if target.Mode == model.EditingEditing && !o.auth.CanModify(*target.Document) {
		return apperr.New(apperr.KindPermission, op, "only the author can edit this post")
	}
	return nil
}

// Remove deletes a document the current identity owns. Nothing happens
// unless confirmed is true. On success the entry is dropped from the local
// collection in place: this is the only local mutation not followed by a
// re-fetch, since a delete has no store-assigned fields to pick up.
func (o *Orchestrator) Remove(ctx context.Context, id model.DocumentID, confirmed bool) error {
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	err := o.remove(ctx, id, confirmed)
	if err != nil {
		contentLogger.Warn().Err(err).Str("document_id", string(id)).Msg("Remove failed")
		o.notifier.Notify(notify.Failure(err, "Failed to delete post."))
	}
	return err
}

func (o *Orchestrator) remove(ctx context.Context, id model.DocumentID, confirmed bool) error {
	doc, ok := o.Find(id)
	if !ok {
		return apperr.New(apperr.KindNotFound, "remove", "post not found: "+string(id))
	}
	if !o.auth.CanModify(doc) {
		return apperr.New(apperr.KindPermission, "remove", "only the author can delete this post")
	}
	if !confirmed {
		return nil
	}

	if err := o.docs.Delete(ctx, id); err != nil {
		return apperr.Classify("remove", err)
	}

	o.mu.Lock()
	if i := o.indexOf(id); i >= 0 {
		o.documents = slices.Delete(o.documents, i, i+1)
	}
	o.mu.Unlock()

	contentLogger.Info().Str("document_id", string(id)).Msg("Document removed")
	o.notifier.Notify(notify.Success("Post deleted successfully!"))
	o.changed(id)
	return nil
}

func (o *Orchestrator) changed(id model.DocumentID) {
	if o.onChange != nil {
		o.onChange(id)
	}
}

// indexOf must be called with o.mu held.
func (o *Orchestrator) indexOf(id model.DocumentID) int {
	return slices.IndexFunc(o.documents, func(d model.Document) bool {
		return d.ID == id
	})
}
