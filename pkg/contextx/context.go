package contextx

import "context"

type Context struct {
	context.Context
	data map[string]interface{}
}

func (ctx *Context) Clone() *Context {
	newCtx := &Context{
		Context: context.Background(),
		data:    map[string]interface{}{},
	}
	for k, v := range ctx.data {
		newCtx.data[k] = v
	}

	return newCtx
}

func (ctx *Context) Set(name string, value interface{}) {
	ctx.data[name] = value
}

func (ctx *Context) GetMap() map[string]interface{} {
	return ctx.data
}

func (ctx *Context) GetCorrelationID() string {
	if correlationId, ok := ctx.data["correlationId"]; ok {
		return correlationId.(string)
	}
	return ""
}

func (ctx *Context) GetPayloadID() string {
	if payloadId, ok := ctx.data["payloadId"]; ok {
		return payloadId.(string)
	}
	return ""
}

func NewContext() *Context {
	return &Context{
		Context: context.Background(),
		data:    map[string]interface{}{},
	}
}

func NewContextFromMap(data map[string]interface{}) *Context {
	return &Context{
		Context: context.Background(),
		data:    data,
	}
}
