package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	legType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteLeg",
		Fields: graphql.Fields{
			"summary":  &graphql.Field{Type: graphql.String},
			"distance": &graphql.Field{Type: graphql.Float},
			"duration": &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"distance":    &graphql.Field{Type: graphql.Float},
			"duration":    &graphql.Field{Type: graphql.Float},
			"weight":      &graphql.Field{Type: graphql.Float},
			"weight_name": &graphql.Field{Type: graphql.String},
			"voiceLocale": &graphql.Field{Type: graphql.String},
			"legs":        &graphql.Field{Type: graphql.NewList(legType)},
			"geometry": &graphql.Field{
				Type:        graphql.NewList(geoPointType),
				Description: "Route shape as lat/lon points",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					route, ok := p.Source.(*domain.DirectionsRoute)
					if !ok || route.Geometry == nil {
						return nil, nil
					}
					return route.Geometry.LineString().Coordinates, nil
				},
			},
		},
	})

	requestLogType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteRequest",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"session_id":   &graphql.Field{Type: graphql.String},
			"origin":       &graphql.Field{Type: geoPointType},
			"bearing":      &graphql.Field{Type: graphql.Float},
			"destination":  &graphql.Field{Type: geoPointType},
			"outcome":      &graphql.Field{Type: graphql.String},
			"error":        &graphql.Field{Type: graphql.String},
			"distance":     &graphql.Field{Type: graphql.Float},
			"duration":     &graphql.Field{Type: graphql.Float},
			"requested_at": &graphql.Field{Type: graphql.DateTime},
			"completed_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"route": &graphql.Field{
				Type:        routeType,
				Description: "The most recently published route",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					route, ok := currentRoute(p.Context, deps)
					if !ok {
						return nil, nil
					}
					return route, nil
				},
			},
			"requests": &graphql.Field{
				Type:        graphql.NewList(requestLogType),
				Description: "Recent route requests for this session",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.History == nil {
						return nil, errors.New("request journal not configured")
					}
					limit := p.Args["limit"].(int)
					return deps.History.ListRecent(p.Context, deps.Finder.Session().ID, limit)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"findRoute": &graphql.Field{
				Type:        graphql.String,
				Description: "Request a route; the result is published asynchronously",
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"bearing":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"dest_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"dest_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pos := domain.Position{
						Lat:     p.Args["lat"].(float64),
						Lon:     p.Args["lon"].(float64),
						Bearing: p.Args["bearing"].(float64),
					}
					dest := domain.GeoPoint{
						Lat: p.Args["dest_lat"].(float64),
						Lon: p.Args["dest_lon"].(float64),
					}
					if err := deps.Finder.FindRoute(p.Context, pos, dest); err != nil {
						return nil, err
					}
					return string(domain.OutcomeRequested), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
