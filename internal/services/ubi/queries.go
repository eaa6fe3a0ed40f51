package ubi

// The marketplace schema is fixed; the client only ever issues these four
// operations with the production space and payment-item ids.
const (
	SpaceID       = "0d2ae42d-4c27-4cb7-af6c-2099062302bb"
	PaymentItemID = "9ef71262-515b-46e8-b9a8-b6b6ad456c67"
)

// Request is one logical GraphQL query inside a batched call.
type Request struct {
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
	Query         string                 `json:"query"`
}

const sellableItemsQuery = "query GetSellableItems($spaceId: String!, $limit: Int!, $offset: Int, $filterBy: MarketableItemFilter, $sortBy: MarketableItemSort) {\n  game(spaceId: $spaceId) {\n    id\n    viewer {\n      meta {\n        id\n        marketableItems(limit: $limit, offset: $offset, filterBy: $filterBy, sortBy: $sortBy, withMarketData: true) {\n          nodes {\n            ...MarketableItemFragment\n            __typename\n          }\n          __typename\n        }\n        __typename\n      }\n      __typename\n    }\n    __typename\n  }\n}\n\nfragment MarketableItemFragment on MarketableItem {\n  id\n  item {\n    ...SecondaryStoreItemFragment\n    __typename\n  }\n  marketData {\n    ...MarketDataFragment\n    __typename\n  }\n}\n\nfragment SecondaryStoreItemFragment on SecondaryStoreItem {\n  id\n  assetUrl\n  itemId\n  name\n}\n\nfragment MarketDataFragment on MarketableItemMarketData {\n  id\n  sellStats {\n    lowestPrice\n    __typename\n  }\n  buyStats {\n    highestPrice\n    __typename\n  }\n  lastSoldAt { price performedAt __typename }\n}"

const transactionsHistoryQuery = "query GetTransactionsHistory($spaceId: String!, $limit: Int!, $offset: Int) { game(spaceId: $spaceId) { id viewer { meta { id trades( limit: $limit, offset: $offset, filterBy: {states: [Succeeded, Failed]}, sortBy: {field: LAST_MODIFIED_AT} ) { nodes { ...TradeFragment __typename } __typename } __typename } __typename } } } fragment TradeFragment on Trade { id state category lastModifiedAt tradeItems { item { itemId name assetUrl __typename } __typename } payment { price __typename } __typename }"

const itemPriceHistoryQuery = "query GetItemPriceHistory($spaceId: String!, $itemId: String!, $paymentItemId: String!) { game(spaceId: $spaceId) { id marketableItem(itemId: $itemId) { id priceHistory(paymentItemId: $paymentItemId) { id date lowestPrice averagePrice highestPrice itemsCount __typename } __typename } __typename } }"

const itemDetailsQuery = "query GetItemDetails($spaceId: String!, $itemId: String!) { game(spaceId: $spaceId) { id marketableItem(itemId: $itemId) { id item { ...SecondaryStoreItemFragment __typename } marketData { ...MarketDataFragment __typename } __typename } __typename } } fragment SecondaryStoreItemFragment on SecondaryStoreItem { id assetUrl itemId name type tags __typename } fragment MarketDataFragment on MarketableItemMarketData { id sellStats { lowestPrice activeCount __typename } buyStats { highestPrice activeCount __typename } lastSoldAt { price performedAt __typename } __typename }"

// SellableItemsRequest lists the viewer's items currently up for sale,
// sorted by last transaction price descending.
func SellableItemsRequest(limit, offset int) Request {
	return Request{
		OperationName: "GetSellableItems",
		Variables: map[string]interface{}{
			"spaceId":  SpaceID,
			"limit":    limit,
			"offset":   offset,
			"filterBy": map[string]interface{}{},
			"sortBy": map[string]interface{}{
				"field":         "LAST_TRANSACTION_PRICE",
				"direction":     "DESC",
				"paymentItemId": PaymentItemID,
			},
		},
		Query: sellableItemsQuery,
	}
}

// TransactionsHistoryRequest pages the viewer's trades, newest first.
func TransactionsHistoryRequest(limit, offset int) Request {
	return Request{
		OperationName: "GetTransactionsHistory",
		Variables: map[string]interface{}{
			"spaceId": SpaceID,
			"limit":   limit,
			"offset":  offset,
		},
		Query: transactionsHistoryQuery,
	}
}

func ItemPriceHistoryRequest(itemID string) Request {
	return Request{
		OperationName: "GetItemPriceHistory",
		Variables: map[string]interface{}{
			"spaceId":       SpaceID,
			"itemId":        itemID,
			"paymentItemId": PaymentItemID,
		},
		Query: itemPriceHistoryQuery,
	}
}

func ItemDetailsRequest(itemID string) Request {
	return Request{
		OperationName: "GetItemDetails",
		Variables: map[string]interface{}{
			"spaceId": SpaceID,
			"itemId":  itemID,
		},
		Query: itemDetailsQuery,
	}
}
