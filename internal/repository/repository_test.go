package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/database/dbtest"
	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/repository"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

func TestUserCRUD(t *testing.T) {
	d := dbtest.Open(t)
	repo := repository.NewUserRepo(d)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, 9999); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}

	id, err := repo.Create(ctx, " Ana@Example.org ", "Ana", "password1", model.RoleITStaff, 4)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := repo.Create(ctx, "ana@example.org", "Other", "password1", model.RoleAdmin, 4); !errors.Is(err, repository.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	u, err := repo.GetByEmail(ctx, "ANA@example.org")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if u.ID != id || u.Email != "ana@example.org" || !u.IsActive || !utils.VerifyPassword(u.PasswordHash, "password1") {
		t.Fatalf("unexpected user %+v", u)
	}

	inactive := false
	role := model.RoleManager
	if err := repo.Update(ctx, id, repository.UserPatch{IsActive: &inactive, Role: &role}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	u, _ = repo.GetByID(ctx, id)
	if u.IsActive || u.Role != model.RoleManager {
		t.Fatalf("update not applied: %+v", u)
	}
	if err := repo.Update(ctx, 9999, repository.UserPatch{Role: &role}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}

	adminID, _ := repo.Create(ctx, "root@example.org", "Root", "password1", model.RoleAdmin, 4)
	ids, err := repo.ActiveIDsByRoles(ctx, model.RoleAdmin, model.RoleITStaff, model.RoleManager)
	if err != nil {
		t.Fatalf("ActiveIDsByRoles error: %v", err)
	}
	if len(ids) != 1 || ids[0] != adminID {
		t.Fatalf("inactive users must be skipped, got %v", ids)
	}
}

func TestTokensAndSessions(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	users := repository.NewUserRepo(d)
	uid, _ := users.Create(ctx, "ana@example.org", "Ana", "password1", model.RoleAdmin, 4)

	tokens := repository.NewTokenRepo(d)
	if err := tokens.StoreRefresh(ctx, uid, "live", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("StoreRefresh: %v", err)
	}
	if err := tokens.StoreRefresh(ctx, uid, "old", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("StoreRefresh: %v", err)
	}
	if got, err := tokens.ValidateRefresh(ctx, "live"); err != nil || got != uid {
		t.Fatalf("ValidateRefresh live: %d %v", got, err)
	}
	if _, err := tokens.ValidateRefresh(ctx, "old"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expired token must fail, got %v", err)
	}
	_ = tokens.RevokeByHash(ctx, "live")
	if _, err := tokens.ValidateRefresh(ctx, "live"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("revoked token must fail, got %v", err)
	}

	pubs := repository.NewPublicUserRepo(d)
	p, err := pubs.Upsert(ctx, "joe@example.org", "", "")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if p.Name != "joe" {
		t.Fatalf("expected name from local part, got %q", p.Name)
	}
	p2, err := pubs.Upsert(ctx, "JOE@example.org", "Joe Silva", "Finance")
	if err != nil {
		t.Fatalf("Upsert existing: %v", err)
	}
	if p2.ID != p.ID || p2.Name != "Joe Silva" || p2.Department != "Finance" {
		t.Fatalf("upsert should update in place: %+v", p2)
	}

	sessions := repository.NewSessionRepo(d)
	_ = sessions.Store(ctx, p.ID, "sess", time.Now().Add(time.Hour))
	if got, err := sessions.Validate(ctx, "sess"); err != nil || got != p.ID {
		t.Fatalf("Validate: %d %v", got, err)
	}
	_ = sessions.Revoke(ctx, "sess")
	if _, err := sessions.Validate(ctx, "sess"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("revoked session must fail, got %v", err)
	}
}

func TestTicketListFiltersAndMessages(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	pubs := repository.NewPublicUserRepo(d)
	ana, _ := pubs.Upsert(ctx, "ana@example.org", "Ana", "")
	bob, _ := pubs.Upsert(ctx, "bob@example.org", "Bob", "")
	staffID, _ := repository.NewUserRepo(d).Create(ctx, "tech@example.org", "Tech", "password1", model.RoleITStaff, 4)

	tickets := repository.NewTicketRepo(d)
	mk := func(title string, by uint64, prio string) *model.Ticket {
		tk := &model.Ticket{Title: title, Description: "desc", Status: model.StatusOpen, Priority: prio, Type: model.DefaultTicketType, CreatedBy: by}
		if err := tickets.Create(ctx, tk); err != nil {
			t.Fatalf("Create: %v", err)
		}
		return tk
	}
	t1 := mk("Printer jam", ana.ID, model.PriorityLow)
	mk("VPN down", ana.ID, model.PriorityCritical)
	mk("New laptop", bob.ID, model.PriorityMedium)

	items, total, err := tickets.List(ctx, repository.TicketFilter{CreatedBy: &ana.ID})
	if err != nil || total != 2 || len(items) != 2 {
		t.Fatalf("List by requester: %d %d %v", total, len(items), err)
	}
	if items[0].RequesterEmail != "ana@example.org" {
		t.Fatalf("expected joined requester email, got %+v", items[0])
	}
	items, total, _ = tickets.List(ctx, repository.TicketFilter{Query: "vpn"})
	if total != 1 || items[0].Priority != model.PriorityCritical {
		t.Fatalf("query filter mismatch: %+v", items)
	}
	_, total, _ = tickets.List(ctx, repository.TicketFilter{PageSize: 1, Page: 2})
	if total != 3 {
		t.Fatalf("total must ignore paging, got %d", total)
	}

	t1.AssignedTo = &staffID
	t1.Status = model.StatusResolved
	resolved := time.Now().UTC()
	t1.ResolvedAt = &resolved
	if err := tickets.Update(ctx, t1); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := tickets.GetByID(ctx, t1.ID)
	if got.AssigneeName != "Tech" || got.ResolvedAt == nil || got.Status != model.StatusResolved {
		t.Fatalf("update not persisted: %+v", got)
	}
	_, total, _ = tickets.List(ctx, repository.TicketFilter{Unassigned: true})
	if total != 2 {
		t.Fatalf("expected 2 unassigned, got %d", total)
	}

	msgs := repository.NewMessageRepo(d)
	_ = msgs.Create(ctx, &model.Message{TicketID: t1.ID, Message: "hello", AuthorType: model.AuthorPublic, AuthorID: ana.ID, AuthorName: "Ana"})
	_ = msgs.Create(ctx, &model.Message{TicketID: t1.ID, Message: "note", AuthorType: model.AuthorITStaff, AuthorID: staffID, AuthorName: "Tech", IsInternal: true})
	public, _ := msgs.ListByTicket(ctx, t1.ID, false)
	all, _ := msgs.ListByTicket(ctx, t1.ID, true)
	if len(public) != 1 || public[0].IsInternal || len(all) != 2 {
		t.Fatalf("internal filtering mismatch: %d public, %d all", len(public), len(all))
	}

	a := &model.Attachment{TicketID: t1.ID, OriginalName: "log.txt", StoredName: "abc.txt", MimeType: "text/plain", SizeBytes: 1536, UploadedByType: model.AuthorPublic, UploadedByID: ana.ID}
	if err := msgs.CreateAttachment(ctx, a); err != nil {
		t.Fatalf("CreateAttachment: %v", err)
	}
	ga, err := msgs.GetAttachment(ctx, t1.ID, a.ID)
	if err != nil || ga.SizeLabel != "1.5 KB" || ga.StoredName != "abc.txt" {
		t.Fatalf("GetAttachment: %+v %v", ga, err)
	}

	if err := tickets.Delete(ctx, t1.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tickets.GetByID(ctx, t1.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected deleted ticket to be gone, got %v", err)
	}
}

func TestEquipmentTermsAndMovements(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	equipment := repository.NewEquipmentRepo(d)
	terms := repository.NewTermRepo(d)
	movements := repository.NewMovementRepo(d)

	value := 5000.0
	life := 5
	bought := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &model.Equipment{InternalCode: "NB-001", Category: "notebook", Brand: "Dell", CurrentStatus: model.EquipmentInStock,
		PurchaseDate: &bought, PurchaseValue: &value, UsefulLifeYears: &life}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := equipment.CreateTx(ctx, tx, e); err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx, _ = d.BeginTx(ctx, nil)
	dup := &model.Equipment{InternalCode: "NB-001", CurrentStatus: model.EquipmentInStock}
	if err := equipment.CreateTx(ctx, tx, dup); !errors.Is(err, repository.ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists, got %v", err)
	}
	_ = tx.Rollback()

	got, err := equipment.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PurchaseValue == nil || *got.PurchaseValue != 5000 || got.PurchaseDate == nil || !got.PurchaseDate.Equal(bought) {
		t.Fatalf("nullable columns not round-tripped: %+v", got)
	}

	tx, _ = d.BeginTx(ctx, nil)
	term := &model.ResponsibilityTerm{EquipmentID: e.ID, ResponsibleName: "Ana", ResponsibleCPF: "52998224725",
		ResponsiblePosition: "Analyst", IssuedDate: time.Now().UTC(), IssuedBy: 1}
	if err := terms.CreateTx(ctx, tx, term); err != nil {
		t.Fatalf("CreateTx term: %v", err)
	}
	second := *term
	if err := terms.CreateTx(ctx, tx, &second); !errors.Is(err, repository.ErrActiveTermExists) {
		t.Fatalf("expected ErrActiveTermExists, got %v", err)
	}
	_ = tx.Rollback()
	if _, err := terms.GetByID(ctx, term.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("rolled back term must not exist, got %v", err)
	}

	tx, _ = d.BeginTx(ctx, nil)
	if err := terms.CreateTx(ctx, tx, term); err != nil {
		t.Fatalf("CreateTx term: %v", err)
	}
	name := "Ana"
	if err := equipment.SetStateTx(ctx, tx, e.ID, repository.EquipmentState{Status: model.EquipmentInUse, ResponsibleName: &name, Location: "HQ"}); err != nil {
		t.Fatalf("SetStateTx: %v", err)
	}
	if err := movements.CreateTx(ctx, tx, &model.Movement{EquipmentID: e.ID, MovementType: model.MovementDelivery, ToUser: &name, TermID: &term.ID}); err != nil {
		t.Fatalf("movement: %v", err)
	}
	active, err := terms.ActiveForEquipmentTx(ctx, tx, e.ID)
	if err != nil || active.ID != term.ID || active.EquipmentCode != "NB-001" {
		t.Fatalf("ActiveForEquipmentTx: %+v %v", active, err)
	}
	dest := model.DestinationStorage
	returned := time.Now().UTC()
	active.ReturnedDate = &returned
	active.ReturnDestination = &dest
	active.ReturnChecklist = map[string]bool{"powers_on": true}
	if err := terms.CloseTx(ctx, tx, &active); err != nil {
		t.Fatalf("CloseTx: %v", err)
	}
	if _, err := terms.ActiveForEquipmentTx(ctx, tx, e.ID); !errors.Is(err, repository.ErrNoActiveTerm) {
		t.Fatalf("expected ErrNoActiveTerm after close, got %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	closed, _ := terms.GetByID(ctx, term.ID)
	if closed.Status != model.TermReturned || !closed.ReturnChecklist["powers_on"] || *closed.ReturnDestination != dest {
		t.Fatalf("closed term mismatch: %+v", closed)
	}
	list, _ := terms.List(ctx, repository.TermFilter{EquipmentID: &e.ID})
	if len(list) != 1 {
		t.Fatalf("expected 1 term, got %d", len(list))
	}
	mv, _ := movements.ListByEquipment(ctx, e.ID)
	if len(mv) != 1 || mv[0].MovementType != model.MovementDelivery || *mv[0].TermID != term.ID {
		t.Fatalf("movement log mismatch: %+v", mv)
	}

	items, total, err := equipment.List(ctx, repository.EquipmentFilter{Query: "dell"})
	if err != nil || total != 1 || items[0].CurrentStatus != model.EquipmentInUse {
		t.Fatalf("List: %+v %d %v", items, total, err)
	}
	if err := equipment.Delete(ctx, e.ID); !errors.Is(err, repository.ErrHasHistory) {
		t.Fatalf("expected ErrHasHistory, got %v", err)
	}
	if list, _ := terms.List(ctx, repository.TermFilter{EquipmentID: &e.ID}); len(list) != 1 {
		t.Fatalf("terms must survive a refused delete, got %d", len(list))
	}
}

func TestArticlesAndNotifications(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	articles := repository.NewArticleRepo(d)

	pub := &model.Article{Title: "Reset VPN", Content: "steps", Category: "network", Tags: []string{"VPN", " vpn ", "remote"}, IsPublished: true, AuthorID: 1}
	draft := &model.Article{Title: "Printers", Content: "draft", Category: "hardware", AuthorID: 1}
	for _, a := range []*model.Article{pub, draft} {
		if err := articles.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	got, _ := articles.GetByID(ctx, pub.ID)
	if len(got.Tags) != 2 || got.Tags[0] != "vpn" {
		t.Fatalf("tags not normalized: %v", got.Tags)
	}
	list, _ := articles.List(ctx, repository.ArticleFilter{PublishedOnly: true})
	if len(list) != 1 || list[0].ID != pub.ID {
		t.Fatalf("drafts must be hidden: %+v", list)
	}
	list, _ = articles.List(ctx, repository.ArticleFilter{Query: "remote"})
	if len(list) != 1 {
		t.Fatalf("tag search mismatch: %+v", list)
	}
	cats, _ := articles.Categories(ctx, false)
	if len(cats) != 2 || cats[0].Category != "hardware" || cats[0].Count != 1 {
		t.Fatalf("categories mismatch: %+v", cats)
	}

	users := repository.NewUserRepo(d)
	uid, _ := users.Create(ctx, "ana@example.org", "Ana", "password1", model.RoleAdmin, 4)
	other, _ := users.Create(ctx, "bob@example.org", "Bob", "password1", model.RoleAdmin, 4)
	notes := repository.NewNotificationRepo(d)
	n := &model.Notification{UserID: uid, Type: "ticket.created", Title: "New ticket", Message: "x"}
	_ = notes.Create(ctx, n)
	_ = notes.Create(ctx, &model.Notification{UserID: uid, Type: "ticket.updated", Title: "Updated", Message: "y"})

	if err := notes.MarkRead(ctx, n.ID, other); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("foreign notification must look missing, got %v", err)
	}
	if err := notes.MarkRead(ctx, n.ID, uid); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if c, _ := notes.CountUnread(ctx, uid); c != 1 {
		t.Fatalf("expected 1 unread, got %d", c)
	}
	if changed, _ := notes.MarkAllRead(ctx, uid); changed != 1 {
		t.Fatalf("expected 1 changed, got %d", changed)
	}
	unread, _ := notes.ListByUser(ctx, uid, true, 0)
	if len(unread) != 0 {
		t.Fatalf("expected empty unread list, got %d", len(unread))
	}
}

var _ database.Querier = (*database.DB)(nil)
