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

// BidRepo provides typed DynamoDB operations for the bids table.
type BidRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewBidRepo(client *dynamodb.Client, tableName string) *BidRepo {
	return &BidRepo{client: client, tableName: tableName}
}

func (r *BidRepo) Put(ctx context.Context, b *domain.Bid) error {
	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return fmt.Errorf("marshal bid: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *BidRepo) Get(ctx context.Context, bidID string) (*domain.Bid, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("bid_id", bidID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("bid %s: %w", bidID, domain.ErrNotFound)
	}
	var b domain.Bid
	if err := attributevalue.UnmarshalMap(out.Item, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateStatusIf performs a conditional status transition: the write only
// succeeds while the stored status still equals expected, so of two racing
// callers exactly one wins. The loser gets ErrInvalidState.
func (r *BidRepo) UpdateStatusIf(ctx context.Context, bidID, expected, next string, extra map[string]interface{}) (*domain.Bid, error) {
	updates := map[string]interface{}{
		fieldBidStatus: next,
		fieldUpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		updates[k] = v
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#cond"] = fieldBidStatus
	ue.Values[":expected"] = &types.AttributeValueMemberS{Value: expected}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("bid_id", bidID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#cond = :expected"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, fmt.Errorf("bid %s is not %s: %w", bidID, expected, domain.ErrInvalidState)
		}
		return nil, err
	}
	var b domain.Bid
	if err := attributevalue.UnmarshalMap(out.Attributes, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByNegotiation queries the negotiation_id-created_at GSI, newest first.
func (r *BidRepo) ListByNegotiation(ctx context.Context, negotiationID string) ([]domain.Bid, error) {
	return r.queryIndex(ctx, "negotiation_id-created_at-index", "negotiation_id", negotiationID)
}

// ListByProduct queries the product_id-created_at GSI, newest first.
func (r *BidRepo) ListByProduct(ctx context.Context, productID string) ([]domain.Bid, error) {
	return r.queryIndex(ctx, "product_id-created_at-index", "product_id", productID)
}

// ListByBuyer returns every bid where userID is the buyer.
func (r *BidRepo) ListByBuyer(ctx context.Context, userID string) ([]domain.Bid, error) {
	return r.queryIndex(ctx, "buyer_id-created_at-index", "buyer_id", userID)
}

// ListByFarmer returns every bid where userID is the farmer.
func (r *BidRepo) ListByFarmer(ctx context.Context, userID string) ([]domain.Bid, error) {
	return r.queryIndex(ctx, "farmer_id-created_at-index", "farmer_id", userID)
}

func (r *BidRepo) queryIndex(ctx context.Context, index, keyName, keyValue string) ([]domain.Bid, error) {
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
	var bids []domain.Bid
	if err := attributevalue.UnmarshalListOfMaps(items, &bids); err != nil {
		return nil, err
	}
	return bids, nil
}
