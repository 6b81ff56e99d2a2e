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
	"github.com/go-user-auth/internal/domain"
)

const (
	attrUserID = "user_id"
	attrEmail  = "email"
	attrOwner  = "owner_id"
	emailIndex = "email-index"

	// emailLockPrefix marks the items that reserve an email address. They
	// share the table so a single transaction can enforce uniqueness.
	emailLockPrefix = "email#"
)

// UserStore keeps accounts in a DynamoDB table keyed by user_id.
type UserStore struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewUserStore(client API, tableName string) *UserStore {
	return &UserStore{client: client, tableName: tableName, now: func() time.Time { return time.Now().UTC() }}
}

func emailLock(email, ownerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUserID: &types.AttributeValueMemberS{Value: emailLockPrefix + email},
		attrOwner:  &types.AttributeValueMemberS{Value: ownerID},
	}
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

// Create writes the account together with its email reservation.
func (s *UserStore) Create(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	notExists := aws.String("attribute_not_exists(" + attrUserID + ")")
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: item, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: emailLock(a.Email, a.ID), ConditionExpression: notExists}},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("email %s already registered: %w", a.Email, domain.ErrConflict)
		}
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (*domain.Account, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(attrUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &a, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(emailIndex),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attrEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &a, nil
}

func updateFields(u domain.AccountUpdate) map[string]interface{} {
	m := map[string]interface{}{}
	if u.FirstName != nil {
		m["first_name"] = *u.FirstName
	}
	if u.LastName != nil {
		m["last_name"] = *u.LastName
	}
	if u.PhoneNumber != nil {
		m["phone_number"] = *u.PhoneNumber
	}
	if u.IsVerified != nil {
		m["is_verified"] = *u.IsVerified
	}
	if u.IsActive != nil {
		m["is_active"] = *u.IsActive
	}
	if u.LastLoginAt != nil {
		m["last_login_at"] = *u.LastLoginAt
	}
	return m
}

// Update applies the non-nil fields of u to an existing account.
func (s *UserStore) Update(ctx context.Context, userID string, u domain.AccountUpdate) (*domain.Account, error) {
	if u.Empty() {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	fields := updateFields(u)
	fields["updated_at"] = s.now()
	ue, err := buildUpdateExpr(fields)
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = attrUserID

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       strKey(attrUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailure(err) {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Attributes, &a); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &a, nil
}

// Delete removes the account and releases its email reservation.
func (s *UserStore) Delete(ctx context.Context, userID string) error {
	a, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	exists := aws.String("attribute_exists(" + attrUserID + ")")
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{TableName: aws.String(s.tableName), Key: strKey(attrUserID, userID), ConditionExpression: exists}},
			{Delete: &types.Delete{TableName: aws.String(s.tableName), Key: strKey(attrUserID, emailLockPrefix+a.Email)}},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// List returns a page of accounts. cursor is a base64-encoded user_id used as
// ExclusiveStartKey; the returned cursor is empty when there are no more pages.
func (s *UserStore) List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error) {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(s.tableName),
		FilterExpression:         aws.String("attribute_exists(#e)"),
		ExpressionAttributeNames: map[string]string{"#e": attrEmail},
		Limit:                    aws.Int32(int32(limit)),
	}
	if cursor != "" {
		userID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = strKey(attrUserID, userID)
	}
	out, err := s.client.Scan(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("scan users: %w", err)
	}
	accounts := []domain.Account{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &accounts); err != nil {
		return nil, "", fmt.Errorf("unmarshal users: %w", err)
	}
	next := ""
	if v, ok := out.LastEvaluatedKey[attrUserID].(*types.AttributeValueMemberS); ok {
		next = encodeCursor(v.Value)
	}
	return accounts, next, nil
}
