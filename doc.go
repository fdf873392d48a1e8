// Package query provides a cached data-fetching layer for Go built on a
// small reactive store.
//
// # Overview
//
// Query organizes fetching around four concepts:
//
//  1. Endpoints: declarative descriptions of a query or mutation
//  2. API: the registry that owns endpoints, a transport and the cache
//  3. Accessors: activations that run endpoints and expose their state
//  4. Tags: labels on cached results used for invalidation
//
// # Basic Usage
//
// Declare endpoints and create an API over a transport:
//
//	client, err := httpquery.New("https://example.test")
//	if err != nil {
//	    return err
//	}
//	api, err := query.CreateAPI(client.BaseQuery(), query.Endpoints{
//	    "getUser": query.Query(query.QueryDef[int, User]{
//	        Build: func(id int) query.Request {
//	            return query.URLRequest(fmt.Sprintf("/users/%d", id))
//	        },
//	        ProvidesTags: func(u User) []query.Tag {
//	            return []query.Tag{query.IDTag("users", u.ID)}
//	        },
//	    }),
//	    "renameUser": query.Mutation(query.MutationDef[Rename, User]{
//	        Build: func(r Rename) query.Request {
//	            return query.Request{URL: fmt.Sprintf("/users/%d", r.ID), Method: "PATCH", Body: r}
//	        },
//	        InvalidatesTags: func(u User) []query.Tag {
//	            return []query.Tag{query.IDTag("users", u.ID)}
//	        },
//	    }),
//	})
//
// Every endpoint gets an accessor named after it: "getUser" becomes
// "GetUserQuery" and "renameUser" becomes "RenameUserMutation".
//
//	users, _ := query.UseQuery[int, User](api, "GetUserQuery")
//	snap, err := users.Use(ctx, 1)
//	fmt.Println(snap.Data.Name, snap.IsSuccess)
//
// # Caching
//
// Each endpoint and argument pair owns one cache entry, keyed as
// "endpoint(serialized-arg)". A query result is reused while the entry is
// successful, the argument is unchanged and the expiry has not passed.
// Mutations never read the cache and share one entry per endpoint.
//
//	api, _ := query.CreateAPI(base, endpoints,
//	    query.WithCacheTimeout(30*time.Second),
//	    query.WithSerializer(mySerializer),
//	)
//
// # Errors
//
// Transport failures are data: they land in Result.Error and in the
// snapshot. The error return of Use, Invoke and friends is reserved for
// faults in the pipeline itself:
//
//	snap, err := users.Use(ctx, 1)
//	if err != nil {
//	    var perr *query.PluginError
//	    if errors.As(err, &perr) { ... }
//	}
//	if snap.IsError {
//	    var herr *httpquery.HTTPError
//	    errors.As(snap.Error, &herr)
//	}
//
// A panic during the fetch is recovered into a *PanicError result.
//
// # Middleware and Plugins
//
// Middleware wraps the fetch and may short-circuit it:
//
//	auth := func(rc *query.RequestCtx, next query.Next) (query.Result, error) {
//	    if !loggedIn {
//	        return query.Result{Error: ErrLoggedOut}, nil
//	    }
//	    return next()
//	}
//
// Calling next twice fails with ErrNextCalledTwice.
//
// Plugins observe every run. Embed BasePlugin and override what you need;
// Meta carries typed values between hooks:
//
//	var started = query.NewMeta[time.Time]("started")
//
//	type timing struct{ query.BasePlugin }
//
//	func (t *timing) BeforeQuery(rc *query.RequestCtx) error {
//	    started.Set(rc, time.Now())
//	    return nil
//	}
//
// # Invalidation
//
// Tags provided by a successful query are matched against invalidation tags:
//
//	api.InvalidateTags(ctx, query.IDTag("users", 1))  // users:1 only
//	api.InvalidateTags(ctx, query.TypeTag("users"))   // every users:<id>
//	api.InvalidateTags(ctx, query.StringTag("feed"))  // the "feed" category
//
// Matching entries are expired and refetched with their own argument before
// InvalidateTags returns. ResetAPIState does the same for every query and
// RefetchQuery for a single one. UpdateQueryData patches cached data without
// fetching.
//
// # Store
//
// Store is the state container behind every entry. It can be used on its
// own, and StoreMiddleware wraps its Set:
//
//	s := query.NewStore(0, logSets)
//	unsubscribe := s.Subscribe(func(v int) { fmt.Println(v) })
//	s.Set(func(v int) int { return v + 1 })
//	unsubscribe()
package query
