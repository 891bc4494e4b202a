package http

import (
	"context"
	"net/http"
	"net/url"

	"fintrack/internal/client"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/session"
	"fintrack/internal/task"
)

type transactionsView struct {
	Transactions []core.Transaction
	Sort         string
}

type formView struct {
	ID     string
	Action string
	Submit string
}

// fetchOne loads a record inside a task scope bound to the request.
func (s *Server) fetchOne(r *http.Request, id, cred string) (core.Detail, error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	scope := task.NewScope(ctx)
	defer scope.Close()

	var detail core.Detail
	task.Go(scope, func(ctx context.Context) (core.Detail, error) {
		return s.client.Get(ctx, id, cred)
	}, func(d core.Detail, err error) {
		detail = d
	})
	err := scope.Wait()
	return detail, err
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	user, cred := credential(r)
	sortKey := ParseSort(r.URL.Query())

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	records, err := s.client.List(ctx, user.Email, cred)
	if err != nil {
		s.failPage(w, r, log.OpList, err)
		return
	}

	s.render(w, r, NewPage("transactions.html", "My Transactions").With(transactionsView{
		Transactions: report.SortTransactions(records, sortKey),
		Sort:         sortKey.String(),
	}))
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	form := NewTransactionForm(s.now())
	s.render(w, r, NewPage("transaction_form.html", "Add Transaction").
		Form(form.Values()).
		With(formView{Action: "/transactions", Submit: "Add Transaction"}))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	page := NewPage("transaction_form.html", "Add Transaction").
		With(formView{Action: "/transactions", Submit: "Add Transaction"})
	if err := parseForm(w, r); err != nil {
		s.render(w, r, page.Status(http.StatusBadRequest).FieldError("", "Invalid form submission"))
		return
	}
	form := ParseTransactionForm(r.PostForm)
	page.Form(form.Values())

	tx, errs := form.Transaction()
	if errs != nil {
		for field, msg := range errs {
			page.FieldError(field, msg)
		}
		s.render(w, r, page.Status(http.StatusUnprocessableEntity))
		return
	}

	_, cred := credential(r)
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	id, err := s.client.Create(ctx, tx, cred)
	if err != nil {
		if s.sessionLost(w, r, err) {
			return
		}
		s.logClientError(r, log.OpCreate, err)
		s.render(w, r, page.Status(statusFor(err)).FieldError("", userMessage(err)))
		return
	}

	s.logger.InfoContext(r.Context(), "Transaction added",
		log.FieldOperation, log.OpCreate,
		log.FieldTransactionID, id,
		log.FieldType, tx.Type.String(),
		log.FieldCategory, tx.Category)
	redirectWithNotice(w, r, "/transactions", session.NoticeSuccess, "Transaction added successfully")
}

func (s *Server) handleTransactionDetails(w http.ResponseWriter, r *http.Request) {
	_, cred := credential(r)
	detail, err := s.fetchOne(r, r.PathValue("id"), cred)
	if err != nil {
		s.failPage(w, r, log.OpRead, err)
		return
	}
	s.render(w, r, NewPage("transaction_detail.html", "Transaction Details").With(detail))
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, cred := credential(r)
	detail, err := s.fetchOne(r, id, cred)
	if err != nil {
		s.failPage(w, r, log.OpRead, err)
		return
	}
	s.render(w, r, NewPage("transaction_form.html", "Update Transaction").
		Form(FormFromTransaction(detail.Transaction).Values()).
		With(editFormView(id)))
}

func editFormView(id string) formView {
	return formView{
		ID:     id,
		Action: "/transactions/" + url.PathEscape(id) + "/edit",
		Submit: "Update Transaction",
	}
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	page := NewPage("transaction_form.html", "Update Transaction").With(editFormView(id))
	if err := parseForm(w, r); err != nil {
		s.render(w, r, page.Status(http.StatusBadRequest).FieldError("", "Invalid form submission"))
		return
	}
	form := ParseTransactionForm(r.PostForm)
	page.Form(form.Values())

	update, errs := form.Update()
	if errs != nil {
		for field, msg := range errs {
			page.FieldError(field, msg)
		}
		s.render(w, r, page.Status(http.StatusUnprocessableEntity))
		return
	}

	_, cred := credential(r)
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.client.Update(ctx, id, update, cred); err != nil {
		if s.sessionLost(w, r, err) {
			return
		}
		if client.IsStatus(err, http.StatusNotFound) || client.IsStatus(err, http.StatusForbidden) {
			s.failPage(w, r, log.OpUpdate, err)
			return
		}
		s.logClientError(r, log.OpUpdate, err)
		s.render(w, r, page.Status(statusFor(err)).FieldError("", userMessage(err)))
		return
	}
	redirectWithNotice(w, r, "/transactions/"+url.PathEscape(id), session.NoticeSuccess, client.MessageUpdated)
}

// handleConfirmDelete is the explicit confirmation step before a delete.
func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	_, cred := credential(r)
	detail, err := s.fetchOne(r, r.PathValue("id"), cred)
	if err != nil {
		s.failPage(w, r, log.OpRead, err)
		return
	}
	s.render(w, r, NewPage("transaction_delete.html", "Delete Transaction").With(detail))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := parseForm(w, r); err != nil || r.PostForm.Get("confirm") != "yes" {
		http.Redirect(w, r, "/transactions/"+url.PathEscape(id)+"/delete", http.StatusSeeOther)
		return
	}

	_, cred := credential(r)
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.client.Delete(ctx, id, cred); err != nil {
		if s.sessionLost(w, r, err) {
			return
		}
		if client.IsStatus(err, http.StatusNotFound) || client.IsStatus(err, http.StatusForbidden) {
			s.failPage(w, r, log.OpDelete, err)
			return
		}
		s.logClientError(r, log.OpDelete, err)
		redirectWithNotice(w, r, "/transactions/"+url.PathEscape(id), session.NoticeError, userMessage(err))
		return
	}
	redirectWithNotice(w, r, "/transactions", session.NoticeSuccess, client.MessageDeleted)
}

// statusFor picks the status of a re-rendered form after an API failure.
func statusFor(err error) int {
	for _, code := range []int{http.StatusUnauthorized, http.StatusUnprocessableEntity} {
		if client.IsStatus(err, code) {
			return code
		}
	}
	return http.StatusBadGateway
}
