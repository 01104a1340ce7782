package dynamostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
)

type fakeDynamo struct {
	inputs []*dynamodb.UpdateItemInput
	err    error
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.inputs = append(f.inputs, in)
	return &dynamodb.UpdateItemOutput{}, f.err
}

func TestMirrorStateWritesConditionalUpdate(t *testing.T) {
	api := &fakeDynamo{}
	m := &StateMirror{Client: api, TableName: "projector-state"}
	ts := time.UnixMilli(1700000000500)

	err := m.MirrorState(context.Background(), "benqbang.0.power", driversdk.State{Val: true, Ack: true, Ts: ts, Lc: ts})
	if err != nil {
		t.Fatalf("MirrorState: %v", err)
	}
	in := api.inputs[0]
	if aws.ToString(in.TableName) != "projector-state" {
		t.Errorf("table = %q", aws.ToString(in.TableName))
	}
	if k, ok := in.Key["slot_id"].(*types.AttributeValueMemberS); !ok || k.Value != "benqbang.0.power" {
		t.Errorf("key = %#v", in.Key)
	}
	if aws.ToString(in.ConditionExpression) != "attribute_not_exists(#ts) OR #ts <= :ts" {
		t.Errorf("condition = %q", aws.ToString(in.ConditionExpression))
	}
	if v, ok := in.ExpressionAttributeValues[":val"].(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Errorf(":val = %#v", in.ExpressionAttributeValues[":val"])
	}
	if v, ok := in.ExpressionAttributeValues[":ts"].(*types.AttributeValueMemberN); !ok || v.Value != "1700000000500" {
		t.Errorf(":ts = %#v", in.ExpressionAttributeValues[":ts"])
	}
}

func TestMirrorStateIgnoresStaleWrites(t *testing.T) {
	api := &fakeDynamo{err: &types.ConditionalCheckFailedException{Message: aws.String("stale")}}
	m := &StateMirror{Client: api, TableName: "t"}
	if err := m.MirrorState(context.Background(), "benqbang.0.alive", driversdk.State{Val: 1.0}); err != nil {
		t.Errorf("stale write surfaced: %v", err)
	}
}

func TestMirrorStateWrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	api := &fakeDynamo{err: boom}
	m := &StateMirror{Client: api, TableName: "t"}
	if err := m.MirrorState(context.Background(), "benqbang.0.alive", driversdk.State{Val: 1.0}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestMirrorObject(t *testing.T) {
	api := &fakeDynamo{}
	m := &StateMirror{Client: api, TableName: "t"}
	obj := driversdk.ObjectDescriptor{
		Type:   "state",
		Common: driversdk.ObjectCommon{Name: "projector power", Role: "indicator", Type: "boolean", Read: true},
		Native: map[string]any{},
	}
	if err := m.MirrorObject(context.Background(), "benqbang.0.power", obj); err != nil {
		t.Fatalf("MirrorObject: %v", err)
	}
	av, ok := api.inputs[0].ExpressionAttributeValues[":object"].(*types.AttributeValueMemberM)
	if !ok {
		t.Fatalf(":object = %#v", api.inputs[0].ExpressionAttributeValues[":object"])
	}
	if name, ok := av.Value["name"].(*types.AttributeValueMemberS); !ok || name.Value != "projector power" {
		t.Errorf("name = %#v", av.Value["name"])
	}
}

func TestNewStateMirrorRequiresTable(t *testing.T) {
	if _, err := NewStateMirror(context.Background(), "", nil); err == nil {
		t.Error("expected error for empty table")
	}
}
