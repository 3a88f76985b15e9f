package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/agrimarket/negotiation-api/internal/domain"
)

// NegotiationRepo provides typed DynamoDB operations for the negotiations table.
type NegotiationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNegotiationRepo(client *dynamodb.Client, tableName string) *NegotiationRepo {
	return &NegotiationRepo{client: client, tableName: tableName}
}

func (r *NegotiationRepo) Put(ctx context.Context, n *domain.Negotiation) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal negotiation: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NegotiationRepo) Get(ctx context.Context, negotiationID string) (*domain.Negotiation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("negotiation_id", negotiationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("negotiation %s: %w", negotiationID, domain.ErrNotFound)
	}
	var n domain.Negotiation
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// FindActive returns the active negotiation for the (product, buyer, farmer)
// triple, or ErrNotFound. Creation is idempotent on top of this lookup.
func (r *NegotiationRepo) FindActive(ctx context.Context, productID, buyerID, farmerID string) (*domain.Negotiation, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("product_id-index"),
		KeyConditionExpression: aws.String("product_id = :pid"),
		FilterExpression:       aws.String("buyer_id = :bid AND farmer_id = :fid AND #st = :active"),
		ExpressionAttributeNames: map[string]string{
			"#st": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid":    &types.AttributeValueMemberS{Value: productID},
			":bid":    &types.AttributeValueMemberS{Value: buyerID},
			":fid":    &types.AttributeValueMemberS{Value: farmerID},
			":active": &types.AttributeValueMemberS{Value: domain.NegotiationActive},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("active negotiation: %w", domain.ErrNotFound)
	}
	var n domain.Negotiation
	if err := attributevalue.UnmarshalMap(out.Items[0], &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser returns negotiations where userID participates on the given
// side ("buyer_id" GSI or "farmer_id" GSI), newest first.
func (r *NegotiationRepo) ListByBuyer(ctx context.Context, userID string) ([]domain.Negotiation, error) {
	return r.queryIndex(ctx, "buyer_id-created_at-index", "buyer_id", userID)
}

func (r *NegotiationRepo) ListByFarmer(ctx context.Context, userID string) ([]domain.Negotiation, error) {
	return r.queryIndex(ctx, "farmer_id-created_at-index", "farmer_id", userID)
}

// CloseIf performs the conditional active -> closed transition. agreedPrice
// is stamped when non-nil. The loser of a racing close gets ErrInvalidState.
func (r *NegotiationRepo) CloseIf(ctx context.Context, negotiationID string, agreedPrice *float64) (*domain.Negotiation, error) {
	updates := map[string]interface{}{
		fieldStatus:    domain.NegotiationClosed,
		fieldUpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if agreedPrice != nil {
		updates[fieldAgreedPrice] = *agreedPrice
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#cond"] = fieldStatus
	ue.Values[":expected"] = &types.AttributeValueMemberS{Value: domain.NegotiationActive}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("negotiation_id", negotiationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#cond = :expected"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, fmt.Errorf("negotiation %s is not active: %w", negotiationID, domain.ErrInvalidState)
		}
		return nil, err
	}
	var n domain.Negotiation
	if err := attributevalue.UnmarshalMap(out.Attributes, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ForceClose sets status to closed regardless of the current value. Used by
// the bid-acceptance cascade, where acceptance already won its own
// conditional write and closure must be idempotent (last writer wins).
func (r *NegotiationRepo) ForceClose(ctx context.Context, negotiationID string, agreedPrice *float64) error {
	updates := map[string]interface{}{
		fieldStatus:    domain.NegotiationClosed,
		fieldUpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if agreedPrice != nil {
		updates[fieldAgreedPrice] = *agreedPrice
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("negotiation_id", negotiationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *NegotiationRepo) queryIndex(ctx context.Context, index, keyName, keyValue string) ([]domain.Negotiation, error) {
	items, err := queryAllPages(ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String("#k = :v"),
		ExpressionAttributeNames: map[string]string{
			"#k": keyName,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: keyValue},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	var negotiations []domain.Negotiation
	if err := attributevalue.UnmarshalListOfMaps(items, &negotiations); err != nil {
		return nil, err
	}
	return negotiations, nil
}
