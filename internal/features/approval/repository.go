package approval

import (
	"context"
	"time"

	"decor-crm/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ApprovalRepository interface {
	// InsertApproval persists a new run. A duplicate-key hit on the active
	// approval index is returned as ErrDuplicatePending.
	InsertApproval(ctx context.Context, a *Approval) error
	InsertTask(ctx context.Context, t *ApprovalTask) error

	GetApproval(ctx context.Context, tenantID, id string) (*Approval, error)
	GetApprovalByID(ctx context.Context, id primitive.ObjectID) (*Approval, error)
	GetTask(ctx context.Context, tenantID, id string) (*ApprovalTask, error)

	// ResolveTaskCAS flips one PENDING task to the given terminal status. The
	// status guard in the filter makes concurrent resolutions race for a
	// single winner; losers get ErrTaskAlreadyResolved.
	ResolveTaskCAS(ctx context.Context, taskID primitive.ObjectID, status TaskStatus, actorID, comment string, at time.Time) (*ApprovalTask, error)

	// ReopenTask reverts a resolved task to PENDING, clearing the decision
	// fields. Used when the run-level update after a won CAS turns out to
	// have raced a cancel.
	ReopenTask(ctx context.Context, taskID primitive.ObjectID) error

	// AdvanceApproval moves the pointer from fromIndex to fromIndex+1, guarded
	// on both status and the current index so progress is monotonic.
	AdvanceApproval(ctx context.Context, approvalID primitive.ObjectID, fromIndex int) error
	TerminateApproval(ctx context.Context, approvalID primitive.ObjectID, status ApprovalStatus, at time.Time) error

	// CancelApprovalCAS flips a PENDING approval to CANCELLED. Returns false
	// when the approval was already terminal.
	CancelApprovalCAS(ctx context.Context, approvalID primitive.ObjectID, at time.Time) (bool, error)

	FindPendingTasksByApprover(ctx context.Context, tenantID, approverID string) ([]ApprovalTask, error)
	FindTasksByApproval(ctx context.Context, approvalID primitive.ObjectID) ([]ApprovalTask, error)
	FindPendingTaskByApproval(ctx context.Context, approvalID primitive.ObjectID) (*ApprovalTask, error)
	FindApprovalsByEntity(ctx context.Context, tenantID, entityType, entityID string) ([]Approval, error)
	FindTerminalApprovals(ctx context.Context, tenantID string) ([]Approval, error)

	// FindOverduePending lists PENDING tasks past due_at. tenantID "" spans
	// all tenants (monitor sweep).
	FindOverduePending(ctx context.Context, tenantID string, now time.Time) ([]ApprovalTask, error)
	MarkEscalated(ctx context.Context, taskID primitive.ObjectID, at time.Time) error

	EnsureIndexes(ctx context.Context) error
}

type ApprovalRepositoryImpl struct {
	Approvals *mongo.Collection
	Tasks     *mongo.Collection
}

func NewApprovalRepository(mongodb *database.MongodbDB) ApprovalRepository {
	return &ApprovalRepositoryImpl{
		Approvals: mongodb.DB.Collection("approvals"),
		Tasks:     mongodb.DB.Collection("approval_tasks"),
	}
}

func (r *ApprovalRepositoryImpl) InsertApproval(ctx context.Context, a *Approval) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := r.Approvals.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicatePending
	}
	return err
}

func (r *ApprovalRepositoryImpl) InsertTask(ctx context.Context, t *ApprovalTask) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	_, err := r.Tasks.InsertOne(ctx, t)
	return err
}

func (r *ApprovalRepositoryImpl) GetApproval(ctx context.Context, tenantID, id string) (*Approval, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var a Approval
	err = r.Approvals.FindOne(ctx, bson.M{"_id": oid, "tenant_id": tenantID}).Decode(&a)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *ApprovalRepositoryImpl) GetApprovalByID(ctx context.Context, id primitive.ObjectID) (*Approval, error) {
	var a Approval
	err := r.Approvals.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *ApprovalRepositoryImpl) GetTask(ctx context.Context, tenantID, id string) (*ApprovalTask, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var t ApprovalTask
	err = r.Tasks.FindOne(ctx, bson.M{"_id": oid, "tenant_id": tenantID}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *ApprovalRepositoryImpl) ResolveTaskCAS(ctx context.Context, taskID primitive.ObjectID, status TaskStatus, actorID, comment string, at time.Time) (*ApprovalTask, error) {
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"acted_by":  actorID,
			"comment":   comment,
			"action_at": at,
		},
	}

	var t ApprovalTask
	err := r.Tasks.FindOneAndUpdate(ctx,
		bson.M{"_id": taskID, "status": TaskPending},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrTaskAlreadyResolved
		}
		return nil, err
	}
	return &t, nil
}

func (r *ApprovalRepositoryImpl) ReopenTask(ctx context.Context, taskID primitive.ObjectID) error {
	_, err := r.Tasks.UpdateOne(ctx,
		bson.M{"_id": taskID},
		bson.M{
			"$set":   bson.M{"status": TaskPending},
			"$unset": bson.M{"acted_by": "", "comment": "", "action_at": ""},
		},
	)
	return err
}

func (r *ApprovalRepositoryImpl) AdvanceApproval(ctx context.Context, approvalID primitive.ObjectID, fromIndex int) error {
	res, err := r.Approvals.UpdateOne(ctx,
		bson.M{"_id": approvalID, "status": ApprovalPending, "current_node_index": fromIndex},
		bson.M{
			"$inc": bson.M{"current_node_index": 1},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrApprovalNotActive
	}
	return nil
}

func (r *ApprovalRepositoryImpl) TerminateApproval(ctx context.Context, approvalID primitive.ObjectID, status ApprovalStatus, at time.Time) error {
	res, err := r.Approvals.UpdateOne(ctx,
		bson.M{"_id": approvalID, "status": ApprovalPending},
		bson.M{"$set": bson.M{
			"status":       status,
			"updated_at":   at,
			"completed_at": at,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrApprovalNotActive
	}
	return nil
}

func (r *ApprovalRepositoryImpl) CancelApprovalCAS(ctx context.Context, approvalID primitive.ObjectID, at time.Time) (bool, error) {
	res, err := r.Approvals.UpdateOne(ctx,
		bson.M{"_id": approvalID, "status": ApprovalPending},
		bson.M{"$set": bson.M{
			"status":       ApprovalCancelled,
			"updated_at":   at,
			"completed_at": at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *ApprovalRepositoryImpl) FindPendingTasksByApprover(ctx context.Context, tenantID, approverID string) ([]ApprovalTask, error) {
	cursor, err := r.Tasks.Find(ctx,
		bson.M{"tenant_id": tenantID, "approver_id": approverID, "status": TaskPending},
		options.Find().SetSort(bson.D{{Key: "due_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []ApprovalTask
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *ApprovalRepositoryImpl) FindTasksByApproval(ctx context.Context, approvalID primitive.ObjectID) ([]ApprovalTask, error) {
	cursor, err := r.Tasks.Find(ctx,
		bson.M{"approval_id": approvalID},
		options.Find().SetSort(bson.D{{Key: "node_index", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []ApprovalTask
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *ApprovalRepositoryImpl) FindPendingTaskByApproval(ctx context.Context, approvalID primitive.ObjectID) (*ApprovalTask, error) {
	var t ApprovalTask
	err := r.Tasks.FindOne(ctx, bson.M{"approval_id": approvalID, "status": TaskPending}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *ApprovalRepositoryImpl) FindApprovalsByEntity(ctx context.Context, tenantID, entityType, entityID string) ([]Approval, error) {
	cursor, err := r.Approvals.Find(ctx,
		bson.M{"tenant_id": tenantID, "entity_type": entityType, "entity_id": entityID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var approvals []Approval
	if err = cursor.All(ctx, &approvals); err != nil {
		return nil, err
	}
	return approvals, nil
}

func (r *ApprovalRepositoryImpl) FindTerminalApprovals(ctx context.Context, tenantID string) ([]Approval, error) {
	cursor, err := r.Approvals.Find(ctx,
		bson.M{
			"tenant_id": tenantID,
			"status":    bson.M{"$in": []ApprovalStatus{ApprovalApproved, ApprovalRejected, ApprovalCancelled}},
		},
		options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var approvals []Approval
	if err = cursor.All(ctx, &approvals); err != nil {
		return nil, err
	}
	return approvals, nil
}

func (r *ApprovalRepositoryImpl) FindOverduePending(ctx context.Context, tenantID string, now time.Time) ([]ApprovalTask, error) {
	filter := bson.M{
		"status": TaskPending,
		"due_at": bson.M{"$lt": now},
	}
	if tenantID != "" {
		filter["tenant_id"] = tenantID
	}

	cursor, err := r.Tasks.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "due_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []ApprovalTask
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *ApprovalRepositoryImpl) MarkEscalated(ctx context.Context, taskID primitive.ObjectID, at time.Time) error {
	_, err := r.Tasks.UpdateOne(ctx,
		bson.M{"_id": taskID, "status": TaskPending},
		bson.M{"$set": bson.M{"escalated_at": at}},
	)
	return err
}

func (r *ApprovalRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	// The partial unique index is the at-most-one-active enforcement: a second
	// PENDING approval for the same entity fails insert with a duplicate key.
	_, err := r.Approvals.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(ApprovalPending)}),
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = r.Tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "approver_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_at", Value: 1}}},
		{Keys: bson.D{{Key: "approval_id", Value: 1}, {Key: "node_index", Value: 1}}},
	})
	return err
}
