package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// maxGraphSuggestions borne la tête de liste demandée à Neo4j.
const maxGraphSuggestions = 50

// SocialGraphDeps regroupe les dépendances du coordinateur.
// Users, Requests et Notifications sont obligatoires, le reste est optionnel.
type SocialGraphDeps struct {
	Users         ports.UserRepository
	Requests      ports.FollowRequestRepository
	Notifications ports.NotificationRepository
	Events        ports.EventPublisher
	Graph         ports.GraphProjection
	Counter       ports.UnreadCounter
	Metrics       ports.Metrics
}

// SocialGraphService implémente ports.SocialGraphService.
// Il orchestre l'annuaire, les demandes et les notifications sans transaction
// multi-documents : chaque étape secondaire est soit compensée, soit best-effort.
type SocialGraphService struct {
	users          ports.UserRepository
	requests       ports.FollowRequestRepository
	inbox          *inbox
	events         ports.EventPublisher
	graph          ports.GraphProjection // nil si Neo4j n'est pas configuré
	metrics        ports.Metrics
	notifyOnReject bool
}

func NewSocialGraphService(deps SocialGraphDeps, notifyOnReject bool) *SocialGraphService {
	metrics := orNoopMetrics(deps.Metrics)
	return &SocialGraphService{
		users:          deps.Users,
		requests:       deps.Requests,
		inbox:          &inbox{repo: deps.Notifications, counter: deps.Counter, metrics: metrics},
		events:         orNoopPublisher(deps.Events),
		graph:          deps.Graph,
		metrics:        metrics,
		notifyOnReject: notifyOnReject,
	}
}

// --- CYCLE DE VIE DES DEMANDES ---

func (s *SocialGraphService) RequestFollow(ctx context.Context, cmd ports.RequestFollowCmd) (*domain.FollowRequest, error) {
	// 1. Fail Fast : préconditions déterministes
	if err := domain.ValidateIDs(cmd.SenderID, cmd.RecipientID); err != nil {
		return nil, err
	}
	if cmd.SenderID == cmd.RecipientID {
		return nil, domain.ErrSelfFollow
	}

	recipient, err := s.users.GetByID(ctx, cmd.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}

	following, err := s.users.IsFollowing(ctx, cmd.SenderID, cmd.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("check following: %w", err)
	}
	if following {
		return nil, domain.ErrAlreadyFollowing
	}

	// Vérification "soft" : l'index unique partiel du store reste la garantie ultime.
	if _, err := s.requests.FindPending(ctx, cmd.SenderID, cmd.RecipientID); err == nil {
		return nil, domain.ErrFollowRequestExists
	} else if !errors.Is(err, domain.ErrFollowRequestNotFound) {
		return nil, fmt.Errorf("find pending request: %w", err)
	}

	senderUsername := cmd.SenderUsername
	if senderUsername == "" {
		sender, err := s.users.GetByID(ctx, cmd.SenderID)
		if err != nil {
			return nil, fmt.Errorf("load sender: %w", err)
		}
		senderUsername = sender.Username
	}
	recipientUsername := cmd.RecipientUsername
	if recipientUsername == "" {
		recipientUsername = recipient.Username
	}

	// 2. Domaine
	req, err := domain.NewFollowRequest(cmd.SenderID, senderUsername, cmd.RecipientID, recipientUsername, cmd.Message)
	if err != nil {
		return nil, err
	}

	// 3. Persistance
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create follow request: %w", err)
	}
	s.metrics.FollowRequestTransition(domain.FollowStatusPending)

	// 4. Side effects : la demande reste visible via la liste des demandes reçues
	// même si la notification échoue.
	s.notify(ctx, req.RecipientID, req.SenderID, req.SenderUsername,
		domain.NotificationFollowRequest, domain.FollowRequestMessage(req.SenderUsername), req.ID)

	if err := s.events.PublishFollowRequested(ctx, req); err != nil {
		slog.WarnContext(ctx, "⚠️ Failed to publish follow requested", "request_id", req.ID, "error", err)
	}

	return req, nil
}

func (s *SocialGraphService) AcceptRequest(ctx context.Context, requestID, recipientID string) (*domain.FollowRequest, error) {
	if err := domain.ValidateIDs(requestID, recipientID); err != nil {
		return nil, err
	}

	// 1. Transition gardée : un seul accept concurrent passe
	req, err := s.requests.Transition(ctx, requestID, recipientID, domain.FollowStatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("accept follow request: %w", err)
	}

	// 2. Effet principal : l'arête dans l'annuaire. En cas d'échec, on compense.
	if err := s.users.AddFollowEdge(ctx, req.SenderID, req.RecipientID); err != nil {
		s.metrics.CompensationTriggered("accept")
		if rerr := s.requests.Restore(ctx, req.ID, domain.FollowStatusAccepted); rerr != nil {
			slog.ErrorContext(ctx, "❌ Compensation failed, request left accepted without edge",
				"request_id", req.ID, "error", rerr)
		}
		return nil, fmt.Errorf("add follow edge: %w", err)
	}
	s.metrics.FollowRequestTransition(domain.FollowStatusAccepted)

	// 3. Best effort : notification, projection, événements
	s.notify(ctx, req.SenderID, req.RecipientID, req.RecipientUsername,
		domain.NotificationFollowAccepted, domain.FollowAcceptedMessage(req.RecipientUsername), req.ID)
	s.project(ctx, req.SenderID, req.RecipientID, true)

	if err := s.events.PublishFollowResolved(ctx, req); err != nil {
		slog.WarnContext(ctx, "⚠️ Failed to publish follow resolved", "request_id", req.ID, "error", err)
	}
	if err := s.events.PublishFollowed(ctx, req.SenderID, req.RecipientID); err != nil {
		slog.WarnContext(ctx, "⚠️ Failed to publish followed", "request_id", req.ID, "error", err)
	}

	return req, nil
}

func (s *SocialGraphService) RejectRequest(ctx context.Context, requestID, recipientID string) (*domain.FollowRequest, error) {
	if err := domain.ValidateIDs(requestID, recipientID); err != nil {
		return nil, err
	}

	req, err := s.requests.Transition(ctx, requestID, recipientID, domain.FollowStatusRejected)
	if err != nil {
		return nil, fmt.Errorf("reject follow request: %w", err)
	}
	s.metrics.FollowRequestTransition(domain.FollowStatusRejected)

	if s.notifyOnReject {
		s.notify(ctx, req.SenderID, req.RecipientID, req.RecipientUsername,
			domain.NotificationFollowRejected, domain.FollowRejectedMessage(req.RecipientUsername), req.ID)
	}

	if err := s.events.PublishFollowResolved(ctx, req); err != nil {
		slog.WarnContext(ctx, "⚠️ Failed to publish follow resolved", "request_id", req.ID, "error", err)
	}

	return req, nil
}

func (s *SocialGraphService) CancelRequest(ctx context.Context, senderID, recipientID string) error {
	if err := domain.ValidateIDs(senderID, recipientID); err != nil {
		return err
	}

	req, err := s.requests.Cancel(ctx, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("cancel follow request: %w", err)
	}
	s.metrics.FollowRequestTransition(domain.FollowStatusCancelled)

	// La notification peut déjà avoir été supprimée par le destinataire.
	err = s.inbox.repo.DeleteByFollowRequest(ctx, recipientID, senderID, req.ID)
	switch {
	case err == nil:
		s.inbox.invalidate(ctx, recipientID)
	case errors.Is(err, domain.ErrNotificationNotFound):
	default:
		slog.WarnContext(ctx, "⚠️ Failed to delete follow request notification", "request_id", req.ID, "error", err)
	}

	if err := s.events.PublishFollowResolved(ctx, req); err != nil {
		slog.WarnContext(ctx, "⚠️ Failed to publish follow resolved", "request_id", req.ID, "error", err)
	}
	return nil
}

// --- ABONNEMENTS ---

// Follow ne crée jamais d'arête : l'abonnement passe toujours par une demande.
func (s *SocialGraphService) Follow(ctx context.Context, followerID, targetID string) (*ports.FollowResult, error) {
	if err := domain.ValidateIDs(followerID, targetID); err != nil {
		return nil, err
	}
	if followerID == targetID {
		return nil, domain.ErrSelfFollow
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}

	following, err := s.users.IsFollowing(ctx, followerID, targetID)
	if err != nil {
		return nil, fmt.Errorf("check following: %w", err)
	}
	if following {
		return nil, domain.ErrAlreadyFollowing
	}

	return &ports.FollowResult{
		Success:         true,
		Message:         "Send follow request",
		RequiresRequest: true,
		IsFollowing:     false,
	}, nil
}

// Unfollow est idempotent et ne touche pas aux demandes.
func (s *SocialGraphService) Unfollow(ctx context.Context, followerID, targetID string) (*ports.FollowResult, error) {
	if err := domain.ValidateIDs(followerID, targetID); err != nil {
		return nil, err
	}
	if followerID == targetID {
		return nil, domain.ErrSelfUnfollow
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}

	if err := s.users.RemoveFollowEdge(ctx, followerID, targetID); err != nil {
		return nil, fmt.Errorf("remove follow edge: %w", err)
	}

	s.project(ctx, followerID, targetID, false)
	if err := s.events.PublishUnfollowed(ctx, followerID, targetID); err != nil {
		slog.WarnContext(ctx, "⚠️ Failed to publish unfollowed", "follower_id", followerID, "error", err)
	}

	return &ports.FollowResult{
		Success:     true,
		Message:     "Successfully unfollowed user",
		IsFollowing: false,
	}, nil
}

// --- LECTURES ---

func (s *SocialGraphService) FollowStatus(ctx context.Context, viewerID, targetID string) (*domain.RelationStatus, error) {
	if err := domain.ValidateIDs(viewerID, targetID); err != nil {
		return nil, err
	}
	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load viewer: %w", err)
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}

	pending, err := s.pendingTargets(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	status := relationOf(viewer, targetID, pending)
	s.reconcile(ctx, viewerID, targetID, status)
	return &status, nil
}

// reconcile compare la projection Neo4j à l'annuaire et la répare en cas d'écart.
// L'annuaire fait foi ; un échec est seulement journalisé.
func (s *SocialGraphService) reconcile(ctx context.Context, viewerID, targetID string, want domain.RelationStatus) {
	if s.graph == nil {
		return
	}
	got, err := s.graph.GetRelationStatus(ctx, viewerID, targetID)
	if err != nil {
		slog.WarnContext(ctx, "⚠️ Graph relation status unavailable", "viewer_id", viewerID, "target_id", targetID, "error", err)
		return
	}
	if got.IsFollowing != want.IsFollowing {
		slog.WarnContext(ctx, "⚠️ Graph projection drift, repairing", "follower_id", viewerID, "target_id", targetID, "following", want.IsFollowing)
		s.project(ctx, viewerID, targetID, want.IsFollowing)
	}
	if got.IsFollowedBy != want.IsFollowedBy {
		slog.WarnContext(ctx, "⚠️ Graph projection drift, repairing", "follower_id", targetID, "target_id", viewerID, "following", want.IsFollowedBy)
		s.project(ctx, targetID, viewerID, want.IsFollowedBy)
	}
}

func (s *SocialGraphService) ListFollowers(ctx context.Context, viewerID, userID string, page ports.Page) (*ports.UserPage, error) {
	return s.listEdges(ctx, viewerID, userID, page, func(u *domain.User) []string { return u.Followers })
}

func (s *SocialGraphService) ListFollowing(ctx context.Context, viewerID, userID string, page ports.Page) (*ports.UserPage, error) {
	return s.listEdges(ctx, viewerID, userID, page, func(u *domain.User) []string { return u.Following })
}

// listEdges pagine un côté du graphe de userID, annoté du point de vue de viewerID.
func (s *SocialGraphService) listEdges(ctx context.Context, viewerID, userID string, page ports.Page, side func(*domain.User) []string) (*ports.UserPage, error) {
	if err := domain.ValidateIDs(viewerID, userID); err != nil {
		return nil, err
	}
	page = page.Normalize()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	viewer := user
	if viewerID != userID {
		if viewer, err = s.users.GetByID(ctx, viewerID); err != nil {
			return nil, fmt.Errorf("load viewer: %w", err)
		}
	}

	ids := side(user)
	total := int64(len(ids))
	start := min(page.Offset(), len(ids))
	end := min(start+page.Limit, len(ids))

	users, err := s.users.GetByIDs(ctx, ids[start:end])
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	pending, err := s.pendingTargets(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return &ports.UserPage{Users: annotate(viewer, users, pending), Total: total, Page: page}, nil
}

func (s *SocialGraphService) SearchUsers(ctx context.Context, viewerID, query string, page ports.Page) (*ports.UserPage, error) {
	if err := domain.ValidateID(viewerID); err != nil {
		return nil, err
	}
	page = page.Normalize()

	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load viewer: %w", err)
	}
	users, total, err := s.users.Search(ctx, query, viewerID, page)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	pending, err := s.pendingTargets(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return &ports.UserPage{Users: annotate(viewer, users, pending), Total: total, Page: page}, nil
}

// Suggestions : amis d'amis (Neo4j) en priorité, complétés par des utilisateurs non suivis.
// Suggestions : une seule liste ordonnée (amis d'amis Neo4j d'abord, puis l'annuaire sans eux),
// découpée en pages. La tête issue du graphe est relue à chaque page pour garder le même ordre.
func (s *SocialGraphService) Suggestions(ctx context.Context, viewerID string, page ports.Page) (*ports.UserPage, error) {
	if err := domain.ValidateID(viewerID); err != nil {
		return nil, err
	}
	page = page.Normalize()

	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load viewer: %w", err)
	}
	exclude := append([]string{viewerID}, viewer.Following...)

	head, err := s.graphSuggestions(ctx, viewerID, exclude)
	if err != nil {
		return nil, err
	}
	for _, u := range head {
		exclude = append(exclude, u.ID)
	}

	offset := page.Offset()
	suggested := append([]*domain.User(nil), head[min(offset, len(head)):min(offset+page.Limit, len(head))]...)

	rest, restTotal, err := s.users.ListExcluding(ctx, exclude, max(offset-len(head), 0), page.Limit-len(suggested))
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	suggested = append(suggested, rest...)

	pending, err := s.pendingTargets(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return &ports.UserPage{
		Users: annotate(viewer, suggested, pending),
		Total: int64(len(head)) + restTotal,
		Page:  page,
	}, nil
}

// graphSuggestions résout les IDs Neo4j dans l'annuaire, dans l'ordre du graphe.
// Le graphe est une projection : les IDs inconnus ou déjà exclus sont ignorés.
func (s *SocialGraphService) graphSuggestions(ctx context.Context, viewerID string, exclude []string) ([]*domain.User, error) {
	if s.graph == nil {
		return nil, nil
	}
	ids, err := s.graph.SuggestFriendsOfFriends(ctx, viewerID, maxGraphSuggestions)
	if err != nil {
		slog.WarnContext(ctx, "⚠️ Graph suggestions unavailable, falling back", "error", err)
		return nil, nil
	}
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load suggested users: %w", err)
	}
	byID := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	out := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok || skip[id] {
			continue
		}
		skip[id] = true
		out = append(out, u)
	}
	return out, nil
}

func (s *SocialGraphService) ListIncomingRequests(ctx context.Context, userID string, page ports.Page) (*ports.RequestPage, error) {
	if err := domain.ValidateID(userID); err != nil {
		return nil, err
	}
	page = page.Normalize()
	reqs, total, err := s.requests.ListPendingForRecipient(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	return &ports.RequestPage{Requests: reqs, Total: total, Page: page}, nil
}

func (s *SocialGraphService) ListOutgoingRequests(ctx context.Context, userID string) ([]*domain.FollowRequest, error) {
	if err := domain.ValidateID(userID); err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListPendingBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list outgoing requests: %w", err)
	}
	return reqs, nil
}

// --- HELPERS ---

func (s *SocialGraphService) notify(ctx context.Context, recipientID, senderID, senderUsername string, typ domain.NotificationType, message, requestID string) {
	n, err := domain.NewNotification(recipientID, senderID, senderUsername, typ, message,
		domain.NotificationData{FollowRequestID: requestID})
	if err == nil {
		err = s.inbox.push(ctx, n)
	}
	if err != nil {
		slog.WarnContext(ctx, "⚠️ Notification not delivered", "type", typ, "request_id", requestID, "error", err)
	}
}

func (s *SocialGraphService) project(ctx context.Context, actorID, targetID string, follow bool) {
	if s.graph == nil {
		return
	}
	var err error
	if follow {
		err = s.graph.CreateRelation(ctx, actorID, targetID)
	} else {
		err = s.graph.DeleteRelation(ctx, actorID, targetID)
	}
	if err != nil {
		slog.WarnContext(ctx, "⚠️ Graph projection out of sync", "actor_id", actorID, "target_id", targetID, "error", err)
	}
}

// pendingTargets : ensemble des destinataires des demandes pending envoyées par userID.
func (s *SocialGraphService) pendingTargets(ctx context.Context, userID string) (map[string]bool, error) {
	reqs, err := s.requests.ListPendingBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	out := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		out[r.RecipientID] = true
	}
	return out, nil
}

func relationOf(viewer *domain.User, targetID string, pending map[string]bool) domain.RelationStatus {
	return domain.RelationStatus{
		IsFollowing:       viewer.IsFollowing(targetID),
		IsFollowedBy:      viewer.IsFollowedBy(targetID),
		FollowRequestSent: pending[targetID],
	}
}

func annotate(viewer *domain.User, users []*domain.User, pending map[string]bool) []ports.UserView {
	out := make([]ports.UserView, 0, len(users))
	for _, u := range users {
		out = append(out, ports.UserView{User: u, Status: relationOf(viewer, u.ID, pending)})
	}
	return out
}
