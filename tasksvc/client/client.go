package client

import (
	"context"
	"io"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/kit/sd/lb"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/todokit/tasksvc/pkg/tasktransport"
)

// ServiceName is the name tasksvc instances register under in consul.
const ServiceName = "tasksvc"

// New balances calls over every passing tasksvc instance known to consul.
// Each call goes to one instance only; failures are not retried.
func New(apiclient consulsd.Client, logger log.Logger) (taskendpoint.Set, error) {
	var (
		tags        = []string{}
		passingOnly = true
		endpoints   = taskendpoint.Set{}
		instancer   = consulsd.NewInstancer(apiclient, logger, ServiceName, tags, passingOnly)
	)
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.TasksEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		endpoints.TasksEndpoint = balanced(lb.NewRoundRobin(endpointer))
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.CreateTaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		endpoints.CreateTaskEndpoint = balanced(lb.NewRoundRobin(endpointer))
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.UpdateTaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		endpoints.UpdateTaskEndpoint = balanced(lb.NewRoundRobin(endpointer))
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.DeleteTaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		endpoints.DeleteTaskEndpoint = balanced(lb.NewRoundRobin(endpointer))
	}
	return endpoints, nil
}

func balanced(b lb.Balancer) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		e, err := b.Endpoint()
		if err != nil {
			return nil, err
		}
		return e(ctx, request)
	}
}

func factoryFor(pick func(taskendpoint.Set) endpoint.Endpoint, logger log.Logger) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		set, err := tasktransport.NewHTTPClient(instance, logger)
		if err != nil {
			return nil, nil, err
		}
		return pick(set), nil, nil
	}
}
