package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/domain/user"
)

// DynamoStore implements Store on DynamoDB. Units of work are single
// TransactWriteItems calls; the stock counter CAS is a ConditionExpression
// on the product version attribute. Orders embed their items, so the item
// cascade on delete is implicit.
type DynamoStore struct {
	client            *dynamodb.Client
	usersTable        string
	productsTable     string
	cartProductsTable string
	ordersTable       string
}

// OrdersByUserIndex is the GSI on the orders table keyed by user_id.
const OrdersByUserIndex = "user_id-index"

func NewDynamoStore(client *dynamodb.Client, usersTable, productsTable, cartProductsTable, ordersTable string) *DynamoStore {
	return &DynamoStore{
		client:            client,
		usersTable:        usersTable,
		productsTable:     productsTable,
		cartProductsTable: cartProductsTable,
		ordersTable:       ordersTable,
	}
}

type dynamoUser struct {
	ID      string `dynamodbav:"id"`
	Name    string `dynamodbav:"name"`
	Email   string `dynamodbav:"email"`
	IsAdmin bool   `dynamodbav:"is_admin"`
}

type dynamoProduct struct {
	ID           string `dynamodbav:"id"`
	Name         string `dynamodbav:"name"`
	Description  string `dynamodbav:"description"`
	Price        int    `dynamodbav:"price"`
	Image        string `dynamodbav:"image"`
	CountInStock int    `dynamodbav:"count_in_stock"`
	Version      int    `dynamodbav:"version"`
}

type dynamoCartProduct struct {
	ID             string `dynamodbav:"id"`
	UserID         string `dynamodbav:"user_id"`
	ProductID      string `dynamodbav:"product_id"`
	Quantity       int    `dynamodbav:"quantity"`
	SelectedSize   string `dynamodbav:"selected_size"`
	SelectedColour string `dynamodbav:"selected_colour"`
	Reserved       bool   `dynamodbav:"reserved"`
}

type dynamoOrderItem struct {
	ID           string `dynamodbav:"id"`
	ProductID    string `dynamodbav:"product_id"`
	Quantity     int    `dynamodbav:"quantity"`
	ProductPrice int    `dynamodbav:"product_price"`
	ProductName  string `dynamodbav:"product_name"`
	ProductImage string `dynamodbav:"product_image"`
}

// dynamoOrder stores date_ordered as Unix milliseconds so scans can compare
// it numerically.
type dynamoOrder struct {
	ID            string            `dynamodbav:"id"`
	UserID        string            `dynamodbav:"user_id"`
	Items         []dynamoOrderItem `dynamodbav:"items"`
	Address1      string            `dynamodbav:"address1"`
	Address2      string            `dynamodbav:"address2"`
	City          string            `dynamodbav:"city"`
	Zip           string            `dynamodbav:"zip"`
	Country       string            `dynamodbav:"country"`
	Phone         string            `dynamodbav:"phone"`
	TotalPrice    int               `dynamodbav:"total_price"`
	Status        string            `dynamodbav:"status"`
	StatusHistory []string          `dynamodbav:"status_history"`
	DateOrdered   int64             `dynamodbav:"date_ordered"`
	Version       int               `dynamodbav:"version"`
}

func toDynamoOrder(o *order.Order) dynamoOrder {
	items := make([]dynamoOrderItem, len(o.Items))
	for i, item := range o.Items {
		items[i] = dynamoOrderItem(item)
	}
	return dynamoOrder{
		ID:            o.ID,
		UserID:        o.UserID,
		Items:         items,
		Address1:      o.Shipping.Address1,
		Address2:      o.Shipping.Address2,
		City:          o.Shipping.City,
		Zip:           o.Shipping.Zip,
		Country:       o.Shipping.Country,
		Phone:         o.Shipping.Phone,
		TotalPrice:    o.TotalPrice,
		Status:        string(o.Status),
		StatusHistory: statusStrings(o.StatusHistory),
		DateOrdered:   o.DateOrdered.UnixMilli(),
		Version:       o.Version,
	}
}

func (d dynamoOrder) toOrder() order.Order {
	items := make([]order.Item, len(d.Items))
	for i, item := range d.Items {
		items[i] = order.Item(item)
	}
	return order.Order{
		ID:     d.ID,
		UserID: d.UserID,
		Items:  items,
		Shipping: order.Shipping{
			Address1: d.Address1,
			Address2: d.Address2,
			City:     d.City,
			Zip:      d.Zip,
			Country:  d.Country,
			Phone:    d.Phone,
		},
		TotalPrice:    d.TotalPrice,
		Status:        order.Status(d.Status),
		StatusHistory: toStatuses(d.StatusHistory),
		DateOrdered:   time.UnixMilli(d.DateOrdered),
		Version:       d.Version,
	}
}

func (s *DynamoStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	item, err := s.getItem(ctx, s.usersTable, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, user.ErrUserNotFound
	}
	var du dynamoUser
	if err := attributevalue.UnmarshalMap(item, &du); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user.User{ID: du.ID, Name: du.Name, Email: du.Email, IsAdmin: du.IsAdmin}, nil
}

func (s *DynamoStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	item, err := s.getItem(ctx, s.productsTable, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, product.ErrProductNotFound
	}
	var dp dynamoProduct
	if err := attributevalue.UnmarshalMap(item, &dp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	p := product.Product(dp)
	return &p, nil
}

func (s *DynamoStore) GetCartProduct(ctx context.Context, id string) (*cart.CartProduct, error) {
	item, err := s.getItem(ctx, s.cartProductsTable, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, cart.ErrCartProductNotFound
	}
	var dcp dynamoCartProduct
	if err := attributevalue.UnmarshalMap(item, &dcp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart product: %w", err)
	}
	cp := cart.CartProduct(dcp)
	return &cp, nil
}

// CommitOrder applies one order-creation attempt as a single
// TransactWriteItems call: conditional stock decrements, the order put, and
// cart product deletes all commit together or not at all.
func (s *DynamoStore) CommitOrder(ctx context.Context, commit OrderCommit) error {
	var writes []types.TransactWriteItem

	for _, r := range commit.Reservations {
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName: aws.String(s.productsTable),
				Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberS{Value: r.ProductID},
				},
				UpdateExpression:    aws.String("SET count_in_stock = count_in_stock - :q, version = version + :one"),
				ConditionExpression: aws.String("version = :ev"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":   &types.AttributeValueMemberN{Value: strconv.Itoa(r.Quantity)},
					":one": &types.AttributeValueMemberN{Value: "1"},
					":ev":  &types.AttributeValueMemberN{Value: strconv.Itoa(r.ExpectedVersion)},
				},
			},
		})
	}

	av, err := attributevalue.MarshalMap(toDynamoOrder(commit.Order))
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	writes = append(writes, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.ordersTable),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})

	for _, id := range commit.RemoveCartProductIDs {
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(s.cartProductsTable),
				Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberS{Value: id},
				},
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if isConditionalCancellation(err) {
		return fmt.Errorf("committing order %s: %w", commit.Order.ID, ErrVersionConflict)
	}
	return err
}

func (s *DynamoStore) UpdateOrderStatus(ctx context.Context, o *order.Order) error {
	history, err := attributevalue.MarshalList(statusStrings(o.StatusHistory))
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.ordersTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: o.ID},
		},
		UpdateExpression:    aws.String("SET #st = :status, status_history = :history, version = version + :one"),
		ConditionExpression: aws.String("version = :ev"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(o.Status)},
			":history": &types.AttributeValueMemberL{Value: history},
			":one":     &types.AttributeValueMemberN{Value: "1"},
			":ev":      &types.AttributeValueMemberN{Value: strconv.Itoa(o.Version)},
		},
	})
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return fmt.Errorf("updating order %s: %w", o.ID, ErrVersionConflict)
	}
	if err != nil {
		return err
	}
	o.Version++
	return nil
}

func (s *DynamoStore) CloseOrder(ctx context.Context, o *order.Order, releases []StockRelease) error {
	history, err := attributevalue.MarshalList(statusStrings(o.StatusHistory))
	if err != nil {
		return err
	}

	writes := []types.TransactWriteItem{{
		Update: &types.Update{
			TableName: aws.String(s.ordersTable),
			Key: map[string]types.AttributeValue{
				"id": &types.AttributeValueMemberS{Value: o.ID},
			},
			UpdateExpression:    aws.String("SET #st = :status, status_history = :history, version = version + :one"),
			ConditionExpression: aws.String("version = :ev"),
			ExpressionAttributeNames: map[string]string{
				"#st": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status":  &types.AttributeValueMemberS{Value: string(o.Status)},
				":history": &types.AttributeValueMemberL{Value: history},
				":one":     &types.AttributeValueMemberN{Value: "1"},
				":ev":      &types.AttributeValueMemberN{Value: strconv.Itoa(o.Version)},
			},
		},
	}}

	for _, r := range releases {
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName: aws.String(s.productsTable),
				Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberS{Value: r.ProductID},
				},
				UpdateExpression: aws.String("SET count_in_stock = count_in_stock + :q, version = version + :one"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":   &types.AttributeValueMemberN{Value: strconv.Itoa(r.Quantity)},
					":one": &types.AttributeValueMemberN{Value: "1"},
				},
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if isConditionalCancellation(err) {
		return fmt.Errorf("closing order %s: %w", o.ID, ErrVersionConflict)
	}
	if err != nil {
		return err
	}
	o.Version++
	return nil
}

func (s *DynamoStore) DeleteOrder(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.ordersTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return order.ErrOrderNotFound
	}
	return err
}

func (s *DynamoStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	item, err := s.getItem(ctx, s.ordersTable, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, order.ErrOrderNotFound
	}
	var do dynamoOrder
	if err := attributevalue.UnmarshalMap(item, &do); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	o := do.toOrder()
	return &o, nil
}

func (s *DynamoStore) ListOrders(ctx context.Context) ([]order.Order, error) {
	var orders []order.Order
	var startKey map[string]types.AttributeValue
	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.ordersTable),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		batch, err := unmarshalOrders(result.Items)
		if err != nil {
			return nil, err
		}
		orders = append(orders, batch...)
		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	sortNewestFirst(orders)
	return orders, nil
}

func (s *DynamoStore) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.ordersTable),
		IndexName:              aws.String(OrdersByUserIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, err
	}
	orders, err := unmarshalOrders(result.Items)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(orders)
	return orders, nil
}

func (s *DynamoStore) CountOrders(ctx context.Context) (int, error) {
	var count int
	var startKey map[string]types.AttributeValue
	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.ordersTable),
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, err
		}
		count += int(result.Count)
		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return count, nil
}

func (s *DynamoStore) ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]order.Order, error) {
	var orders []order.Order
	var startKey map[string]types.AttributeValue
	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.ordersTable),
			FilterExpression: aws.String("#st = :pending AND date_ordered < :cutoff"),
			ExpressionAttributeNames: map[string]string{
				"#st": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pending": &types.AttributeValueMemberS{Value: string(order.StatusPending)},
				":cutoff":  &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.UnixMilli(), 10)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		batch, err := unmarshalOrders(result.Items)
		if err != nil {
			return nil, err
		}
		orders = append(orders, batch...)
		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return orders, nil
}

func (s *DynamoStore) getItem(ctx context.Context, table, id string) (map[string]types.AttributeValue, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, err
	}
	return result.Item, nil
}

func unmarshalOrders(items []map[string]types.AttributeValue) ([]order.Order, error) {
	orders := make([]order.Order, 0, len(items))
	for _, item := range items {
		var do dynamoOrder
		if err := attributevalue.UnmarshalMap(item, &do); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order: %w", err)
		}
		orders = append(orders, do.toOrder())
	}
	return orders, nil
}

func sortNewestFirst(orders []order.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].DateOrdered.After(orders[j].DateOrdered)
	})
}

// isConditionalCancellation reports whether a TransactWriteItems error was
// caused by a failed condition check, i.e. a lost optimistic-concurrency race.
func isConditionalCancellation(err error) bool {
	var cancelled *types.TransactionCanceledException
	if !errors.As(err, &cancelled) {
		return false
	}
	for _, reason := range cancelled.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
