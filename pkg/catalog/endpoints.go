package catalog

// Endpoint definitions mirror the ESI swagger document for the routes this
// library supports. Only GET routes are listed; ESI write routes are out of
// scope for the client.

var datasource = Param{Name: "datasource", In: InQuery, Type: "string", Default: "tranquility"}

var registry = map[string]Endpoint{
	"/status/": {
		Key:    "/status/",
		Method: "get",
		Params: []Param{datasource},
	},
	"/markets/{region_id}/orders/": {
		Key:    "/markets/{region_id}/orders/",
		Method: "get",
		Params: []Param{
			{Name: "region_id", In: InPath, Required: true, Type: "integer"},
			{Name: "order_type", In: InQuery, Required: true, Type: "string", Default: "all"},
			{Name: "page", In: InQuery, Type: "integer", Default: 1},
			{Name: "type_id", In: InQuery, Type: "integer"},
			datasource,
		},
	},
	"/markets/{region_id}/history/": {
		Key:    "/markets/{region_id}/history/",
		Method: "get",
		Params: []Param{
			{Name: "region_id", In: InPath, Required: true, Type: "integer"},
			{Name: "type_id", In: InQuery, Required: true, Type: "integer"},
			datasource,
		},
	},
	"/markets/structures/{structure_id}/": {
		Key:    "/markets/structures/{structure_id}/",
		Method: "get",
		Scopes: []string{"esi-markets.structure_markets.v1"},
		Params: []Param{
			{Name: "structure_id", In: InPath, Required: true, Type: "integer"},
			{Name: "page", In: InQuery, Type: "integer", Default: 1},
			datasource,
		},
	},
	"/characters/{character_id}/orders/": {
		Key:    "/characters/{character_id}/orders/",
		Method: "get",
		Scopes: []string{"esi-markets.read_character_orders.v1"},
		Params: []Param{
			{Name: "character_id", In: InPath, Required: true, Type: "integer"},
			datasource,
		},
	},
	"/characters/{character_id}/wallet/": {
		Key:    "/characters/{character_id}/wallet/",
		Method: "get",
		Scopes: []string{"esi-wallet.read_character_wallet.v1"},
		Params: []Param{
			{Name: "character_id", In: InPath, Required: true, Type: "integer"},
			datasource,
		},
	},
	"/characters/{character_id}/search/": {
		Key:    "/characters/{character_id}/search/",
		Method: "get",
		Scopes: []string{"esi-search.search_structures.v1"},
		Params: []Param{
			{Name: "character_id", In: InPath, Required: true, Type: "integer"},
			{Name: "categories", In: InQuery, Required: true, Type: "string"},
			{Name: "search", In: InQuery, Required: true, Type: "string"},
			{Name: "strict", In: InQuery, Type: "boolean", Default: false},
			{Name: "Accept-Language", In: InHeader, Type: "string"},
			datasource,
		},
	},
	"/universe/types/{type_id}/": {
		Key:    "/universe/types/{type_id}/",
		Method: "get",
		Params: []Param{
			{Name: "type_id", In: InPath, Required: true, Type: "integer"},
			{Name: "language", In: InQuery, Type: "string", Default: "en"},
			{Name: "Accept-Language", In: InHeader, Type: "string"},
			datasource,
		},
	},
	"/universe/structures/{structure_id}/": {
		Key:    "/universe/structures/{structure_id}/",
		Method: "get",
		Scopes: []string{"esi-universe.read_structures.v1"},
		Params: []Param{
			{Name: "structure_id", In: InPath, Required: true, Type: "integer"},
			datasource,
		},
	},
}
