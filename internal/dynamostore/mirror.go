package dynamostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
)

type updateAPI interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// StateMirror keeps one DynamoDB item per slot, keyed by the full slot id.
// Older states never overwrite newer ones.
type StateMirror struct {
	Client    updateAPI
	TableName string
	Log       driversdk.Logger
}

type objectItem struct {
	Type   string         `dynamodbav:"type"`
	Name   string         `dynamodbav:"name"`
	Role   string         `dynamodbav:"role"`
	Kind   string         `dynamodbav:"value_type"`
	Read   bool           `dynamodbav:"read"`
	Write  bool           `dynamodbav:"write"`
	Native map[string]any `dynamodbav:"native"`
}

func NewStateMirror(ctx context.Context, tableName string, log driversdk.Logger) (*StateMirror, error) {
	if tableName == "" {
		return nil, fmt.Errorf("dynamodb state table is not set")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &StateMirror{
		Client:    dynamodb.NewFromConfig(cfg),
		TableName: tableName,
		Log:       log,
	}, nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"slot_id": &types.AttributeValueMemberS{Value: id},
	}
}

func (m *StateMirror) MirrorObject(ctx context.Context, id string, obj driversdk.ObjectDescriptor) error {
	av, err := attributevalue.Marshal(objectItem{
		Type:   obj.Type,
		Name:   obj.Common.Name,
		Role:   obj.Common.Role,
		Kind:   obj.Common.Type,
		Read:   obj.Common.Read,
		Write:  obj.Common.Write,
		Native: obj.Native,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal object %s: %w", id, err)
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(m.TableName),
		Key:                      key(id),
		UpdateExpression:         aws.String("SET #object = :object"),
		ExpressionAttributeNames: map[string]string{"#object": "object"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":object": av,
		},
	}
	if _, err := m.Client.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("failed to update object %s: %w", id, err)
	}
	return nil
}

func (m *StateMirror) MirrorState(ctx context.Context, id string, st driversdk.State) error {
	val, err := attributevalue.Marshal(st.Val)
	if err != nil {
		return fmt.Errorf("failed to marshal state %s: %w", id, err)
	}
	ts := st.Ts.UnixMilli()
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(m.TableName),
		Key:       key(id),
		ConditionExpression: aws.String(
			"attribute_not_exists(#ts) OR #ts <= :ts",
		),
		UpdateExpression: aws.String(
			"SET #val = :val, #ack = :ack, #ts = :ts, #lc = :lc, #from = :from",
		),
		ExpressionAttributeNames: map[string]string{
			"#val":  "val",
			"#ack":  "ack",
			"#ts":   "ts",
			"#lc":   "lc",
			"#from": "from",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":val":  val,
			":ack":  &types.AttributeValueMemberBOOL{Value: st.Ack},
			":ts":   &types.AttributeValueMemberN{Value: fmt.Sprint(ts)},
			":lc":   &types.AttributeValueMemberN{Value: fmt.Sprint(st.Lc.UnixMilli())},
			":from": &types.AttributeValueMemberS{Value: st.From},
		},
	}
	_, err = m.Client.UpdateItem(ctx, input)
	var stale *types.ConditionalCheckFailedException
	if errors.As(err, &stale) {
		if m.Log != nil {
			m.Log.Debug("skipping stale state", "id", id, "ts", ts)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update state %s: %w", id, err)
	}
	return nil
}
