package flow

import (
	"context"
	"time"

	"decor-crm/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type FlowRepository interface {
	Create(ctx context.Context, flow ApprovalFlow) error
	GetByID(ctx context.Context, tenantID, id string) (*ApprovalFlow, error)
	// GetActiveByEntityType returns the active flow for the tenant and entity
	// type, or nil when none is configured.
	GetActiveByEntityType(ctx context.Context, tenantID, entityType string) (*ApprovalFlow, error)
	List(ctx context.Context, tenantID string) ([]ApprovalFlow, error)
	Update(ctx context.Context, tenantID, id string, flow ApprovalFlow) error
	Delete(ctx context.Context, tenantID, id string) error
	EnsureIndexes(ctx context.Context) error
}

type FlowRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewFlowRepository(mongodb *database.MongodbDB) FlowRepository {
	return &FlowRepositoryImpl{
		Collection: mongodb.DB.Collection("approval_flows"),
	}
}

func (r *FlowRepositoryImpl) Create(ctx context.Context, flow ApprovalFlow) error {
	_, err := r.Collection.InsertOne(ctx, flow)
	return err
}

func (r *FlowRepositoryImpl) GetByID(ctx context.Context, tenantID, id string) (*ApprovalFlow, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var flow ApprovalFlow
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid, "tenant_id": tenantID}).Decode(&flow)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &flow, nil
}

func (r *FlowRepositoryImpl) GetActiveByEntityType(ctx context.Context, tenantID, entityType string) (*ApprovalFlow, error) {
	var flow ApprovalFlow
	err := r.Collection.FindOne(ctx, bson.M{
		"tenant_id":   tenantID,
		"entity_type": entityType,
		"active":      true,
	}).Decode(&flow)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // No active flow configured for this entity type
		}
		return nil, err
	}
	return &flow, nil
}

func (r *FlowRepositoryImpl) List(ctx context.Context, tenantID string) ([]ApprovalFlow, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var flows []ApprovalFlow
	if err = cursor.All(ctx, &flows); err != nil {
		return nil, err
	}
	return flows, nil
}

func (r *FlowRepositoryImpl) Update(ctx context.Context, tenantID, id string, flow ApprovalFlow) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			"name":       flow.Name,
			"active":     flow.Active,
			"nodes":      flow.Nodes,
			"updated_at": time.Now(),
		},
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid, "tenant_id": tenantID}, update)
	return err
}

func (r *FlowRepositoryImpl) Delete(ctx context.Context, tenantID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.DeleteOne(ctx, bson.M{"_id": oid, "tenant_id": tenantID})
	return err
}

func (r *FlowRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	// One active flow per (tenant, entity type); inactive drafts may coexist.
	_, err := r.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "entity_type", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"active": true}),
	})
	return err
}
