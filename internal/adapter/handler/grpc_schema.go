package handler

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SimulationProtoPath names the file descriptor registered for the service.
// Reflection clients such as grpcurl resolve the service through it.
const SimulationProtoPath = "storesim/v1/simulation.proto"

// Every method takes and returns a google.protobuf.Struct holding the JSON
// form of the request and response DTOs.
func simulationFileProto() *descriptorpb.FileDescriptorProto {
	structName := "." + string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())
	method := func(name string) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(structName),
			OutputType: proto.String(structName),
		}
	}
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(SimulationProtoPath),
		Package:    proto.String("storesim.v1"),
		Dependency: []string{structpb.File_google_protobuf_struct_proto.Path()},
		Syntax:     proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/rl1809/store-sim/internal/adapter/handler"),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("SimulationService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("GetReport"),
				method("GetStock"),
				method("Replenish"),
			},
		}},
	}
}

func init() {
	if _, err := protoregistry.GlobalFiles.FindFileByPath(SimulationProtoPath); err == nil {
		return
	}
	fd, err := protodesc.NewFile(simulationFileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("build %s: %v", SimulationProtoPath, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("register %s: %v", SimulationProtoPath, err))
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func fromStruct(msg *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
