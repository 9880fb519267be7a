// Package labstep is a client for the Labstep laboratory information
// management API.
//
// A session starts with Login, Authenticate or AuthenticateBearer, which
// return a *Client bound to one user and an active workspace. Typed entity
// wrappers (Experiment, Protocol, Resource, ResourceLocation, ...) are
// fetched, listed and created through the client:
//
//	c, err := labstep.Authenticate(ctx, labstep.DefaultConfig(), apiKey)
//	exp, err := c.NewExperiment(ctx, "Buffer prep")
//	err = exp.Comments().Add(ctx, "Started")
//	err = exp.Tags().Add(ctx, "buffers")
//
// Every entity keeps the server fields it does not declare in Extra and the
// untouched response in Raw. Fields are only as fresh as the last fetch;
// call Update to refetch.
//
// Capabilities such as comments, tags, sharing, metadata and collaborators
// are small clients scoped to one entity and returned by accessor methods.
// The Commentable, Taggable, Shareable, HasMetadata and Assignable
// interfaces describe which entity types carry them.
//
// Edits take request structs built from optional.Value fields: an Unset
// field is left out of the request so the server keeps its value, while
// optional.Null explicitly clears it.
package labstep
